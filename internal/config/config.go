package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Config is read once at startup and treated as immutable afterwards.
type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres|memory
	DBDSN    string

	BlobBasePath string // print exports

	// ExtensionBridge selects the extension-backed answer storage. It plays
	// the role of the marker attribute a cooperating extension sets on the page.
	ExtensionBridge bool
	BridgeSecret    string
	BridgeTimeout   time.Duration

	SaveQuietPeriod time.Duration
	PrintDelay      time.Duration
	ChromeBin       string

	LogLevel string
	LogFile  string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

// CORSOrigins returns the allowed origins for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// DevBridgeSecret signs peer tokens when BRIDGE_SECRET is unset.
const DevBridgeSecret = "answerbook-dev-bridge-secret"

// ErrDefaultBridgeSecret rejects an enabled bridge that anyone could join
// with a token signed by the well-known development secret.
var ErrDefaultBridgeSecret = errors.New("config: EXTENSION_BRIDGE requires BRIDGE_SECRET to be set")

// Validate reports settings the process must not start with.
func (c Config) Validate() error {
	if c.ExtensionBridge && (c.BridgeSecret == "" || c.BridgeSecret == DevBridgeSecret) {
		return ErrDefaultBridgeSecret
	}
	return nil
}

func defaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("BLOB_BASE_PATH", "./data")
	v.SetDefault("EXTENSION_BRIDGE", false)
	v.SetDefault("BRIDGE_SECRET", DevBridgeSecret)
	v.SetDefault("BRIDGE_TIMEOUT", 5*time.Second)
	v.SetDefault("SAVE_QUIET_PERIOD", 1500*time.Millisecond)
	v.SetDefault("PRINT_DELAY", 500*time.Millisecond)
	v.SetDefault("CHROME_BIN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://answerbook.mindengage.ai")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:8080")
}

// Load reads defaults, an optional answerbook.yaml in dir, then the environment.
// Environment variables win over the file.
func Load(dir string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("answerbook")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, err
			}
		}
	}
	return fromViper(v), nil
}

// FromEnv loads configuration from the environment only.
func FromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

func fromViper(v *viper.Viper) Config {
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOnline {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		BlobBasePath:       v.GetString("BLOB_BASE_PATH"),
		ExtensionBridge:    v.GetBool("EXTENSION_BRIDGE"),
		BridgeSecret:       v.GetString("BRIDGE_SECRET"),
		BridgeTimeout:      v.GetDuration("BRIDGE_TIMEOUT"),
		SaveQuietPeriod:    v.GetDuration("SAVE_QUIET_PERIOD"),
		PrintDelay:         v.GetDuration("PRINT_DELAY"),
		ChromeBin:          v.GetString("CHROME_BIN"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
	}
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
