// Package answers persists answer documents and paragraph sets. The backend
// (local key-value store or extension peer) is fixed when the Adapter is
// built; paragraph sets always live in the local store.
package answers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/keys"
	"github.com/mind-engage/mindengage-answerbook/internal/kv"
	"github.com/mind-engage/mindengage-answerbook/internal/metrics"
	"github.com/mind-engage/mindengage-answerbook/internal/paragraphs"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

type Backend string

const (
	BackendLocal     Backend = "local"
	BackendExtension Backend = "extension"
)

// BackendFor maps the extension marker onto a backend.
func BackendFor(extensionInstalled bool) Backend {
	if extensionInstalled {
		return BackendExtension
	}
	return BackendLocal
}

// Extension is the asynchronous key-value service offered by the extension peer.
type Extension interface {
	Save(ctx context.Context, key, content string) error
	Load(ctx context.Context, key string) (string, bool, error)
	GetAll(ctx context.Context) (map[string]string, error)
}

// Journal records saves; *syncx.EventRepo satisfies it.
type Journal interface {
	Append(ctx context.Context, e syncx.Event) error
}

var ErrNoExtension = errors.New("answers: extension backend selected without an extension")

type Adapter struct {
	backend Backend
	local   kv.Store
	ext     Extension
	journal Journal
	log     *zap.Logger
}

type Option func(*Adapter)

func WithJournal(j Journal) Option { return func(a *Adapter) { a.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(a *Adapter) { a.log = l } }

func NewAdapter(backend Backend, local kv.Store, ext Extension, opts ...Option) (*Adapter, error) {
	if backend == BackendExtension && ext == nil {
		return nil, ErrNoExtension
	}
	a := &Adapter{
		backend: backend,
		local:   local,
		ext:     ext,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *Adapter) Backend() Backend { return a.backend }

// Save persists html for the pair. Placeholder documents and missing
// identifiers are ignored and reported as saved=false.
func (a *Adapter) Save(ctx context.Context, assignmentID, subID, html string) (bool, error) {
	if assignmentID == "" || subID == "" || IsPlaceholder(html) {
		return false, nil
	}
	var key string
	switch a.backend {
	case BackendExtension:
		key = keys.ExtensionKey(assignmentID, subID)
		if err := a.ext.Save(ctx, key, html); err != nil {
			return false, err
		}
	default:
		key = keys.AnswerKey(assignmentID, subID)
		if err := a.local.Set(ctx, key, html); err != nil {
			return false, err
		}
	}

	metrics.SaveCounter.WithLabelValues(string(a.backend)).Inc()
	if a.journal != nil {
		data, _ := json.Marshal(map[string]any{"backend": a.backend, "bytes": len(html)})
		if err := a.journal.Append(ctx, syncx.Event{Type: syncx.TypeAnswerSaved, Key: key, DataJSON: string(data)}); err != nil {
			a.log.Warn("journal append failed", zap.String("key", key), zap.Error(err))
		}
	}
	return true, nil
}

// Load returns the saved answer, or found=false when there is none.
func (a *Adapter) Load(ctx context.Context, assignmentID, subID string) (string, bool, error) {
	if assignmentID == "" || subID == "" {
		return "", false, nil
	}
	if a.backend == BackendExtension {
		return a.ext.Load(ctx, keys.ExtensionKey(assignmentID, subID))
	}
	return a.local.Get(ctx, keys.AnswerKey(assignmentID, subID))
}

// EnumerateAnswers returns every saved answer of the assignment keyed by sub-assignment.
func (a *Adapter) EnumerateAnswers(ctx context.Context, assignmentID string) (map[string]string, error) {
	out := map[string]string{}
	if a.backend == BackendExtension {
		all, err := a.ext.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range all {
			aid, sid, ok := keys.SplitExtensionKey(k)
			if ok && aid == assignmentID {
				out[sid] = v
			}
		}
		return out, nil
	}

	prefix := keys.AnswerScanPrefix(assignmentID)
	entries, err := a.local.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for k, v := range entries {
		out[strings.TrimPrefix(k, prefix)] = v
	}
	return out, nil
}

// EnumerateParagraphSubIDs returns the sub-assignments with a stored paragraph set.
func (a *Adapter) EnumerateParagraphSubIDs(ctx context.Context, assignmentID string) (map[string]struct{}, error) {
	entries, err := a.local.Scan(ctx, keys.ParagraphsScanPrefix(assignmentID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(entries))
	for k := range entries {
		if sid, ok := keys.SubIDFromParagraphsKey(k); ok {
			out[sid] = struct{}{}
		}
	}
	return out, nil
}

// SaveParagraphs stores set locally. Failures are logged, never returned.
func (a *Adapter) SaveParagraphs(ctx context.Context, assignmentID, subID string, set paragraphs.Set) {
	b, err := json.Marshal(set)
	if err != nil {
		a.log.Error("error saving paragraphs", zap.String("assignment", assignmentID), zap.String("sub", subID), zap.Error(err))
		return
	}
	if err := a.local.Set(ctx, keys.ParagraphsKey(assignmentID, subID), string(b)); err != nil {
		a.log.Error("error saving paragraphs", zap.String("assignment", assignmentID), zap.String("sub", subID), zap.Error(err))
	}
}

// LoadParagraphs returns the stored set; missing or malformed data yields an empty set.
func (a *Adapter) LoadParagraphs(ctx context.Context, assignmentID, subID string) paragraphs.Set {
	raw, ok, err := a.local.Get(ctx, keys.ParagraphsKey(assignmentID, subID))
	if err != nil {
		a.log.Warn("load paragraphs", zap.String("assignment", assignmentID), zap.String("sub", subID), zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var set paragraphs.Set
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		a.log.Debug("malformed paragraphs", zap.String("assignment", assignmentID), zap.String("sub", subID), zap.Error(err))
		return nil
	}
	return set
}
