package rbac

const PermBridgeConnect = "bridge:connect"

// RolePermissions is the default policy. Tokens carry one role.
var RolePermissions = map[string][]string{
	"extension": {PermBridgeConnect},
	"admin":     {"*"},
}
