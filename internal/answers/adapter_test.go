package answers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-answerbook/internal/keys"
	"github.com/mind-engage/mindengage-answerbook/internal/kv"
	"github.com/mind-engage/mindengage-answerbook/internal/paragraphs"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

type fakeExtension struct {
	data   map[string]string
	saves  int
	getErr error
}

func newFakeExtension() *fakeExtension { return &fakeExtension{data: map[string]string{}} }

func (f *fakeExtension) Save(_ context.Context, key, content string) error {
	f.saves++
	f.data[key] = content
	return nil
}

func (f *fakeExtension) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeExtension) GetAll(context.Context) (map[string]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data, nil
}

type memJournal struct{ events []syncx.Event }

func (m *memJournal) Append(_ context.Context, e syncx.Event) error {
	m.events = append(m.events, e)
	return nil
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	j := &memJournal{}
	a, err := NewAdapter(BackendLocal, store, nil, WithJournal(j))
	require.NoError(t, err)

	content := "<p>Meine <strong>Antwort</strong> und <em>mehr</em></p>"
	saved, err := a.Save(ctx, "chapter3_Fractions", "2", content)
	require.NoError(t, err)
	assert.True(t, saved)

	got, found, err := a.Load(ctx, "chapter3_Fractions", "2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, content, got)

	raw, ok, _ := store.Get(ctx, keys.AnswerKey("chapter3_Fractions", "2"))
	require.True(t, ok)
	assert.Equal(t, content, raw)

	require.Len(t, j.events, 1)
	assert.Equal(t, syncx.TypeAnswerSaved, j.events[0].Type)

	// editor output is stored byte for byte
	for i, content := range []string{
		`<p>Er sagte "hallo" und geht's</p>`,
		`<ol><li data-list="bullet">x</li><li data-list="ordered">y</li></ol>`,
		`<p><span style="color: red;">rot</span></p>`,
		`<p class="ql-align-center">Mitte</p>`,
	} {
		sid := fmt.Sprintf("q%d", i)
		saved, err := a.Save(ctx, "chapter3_Fractions", sid, content)
		require.NoError(t, err)
		require.True(t, saved)
		got, found, err := a.Load(ctx, "chapter3_Fractions", sid)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, content, got)
	}
}

func TestPlaceholderNeverPersisted(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, err := NewAdapter(BackendLocal, store, nil)
	require.NoError(t, err)

	_, err = a.Save(ctx, "ch1", "1", "<p>keep</p>")
	require.NoError(t, err)

	for _, empty := range []string{"", "<p><br></p>", "  <p><br></p>\n", "<p></p>"} {
		saved, err := a.Save(ctx, "ch1", "1", empty)
		require.NoError(t, err)
		assert.False(t, saved, "%q", empty)
	}
	got, _, _ := a.Load(ctx, "ch1", "1")
	assert.Equal(t, "<p>keep</p>", got, "placeholders must not overwrite a stored answer")

	saved, err := a.Save(ctx, "ch1", "2", "<p><br></p>")
	require.NoError(t, err)
	assert.False(t, saved)
	_, found, _ := a.Load(ctx, "ch1", "2")
	assert.False(t, found)
}

func TestMissingIdentifiersAreNoOps(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, _ := NewAdapter(BackendLocal, store, nil)

	saved, err := a.Save(ctx, "", "1", "<p>x</p>")
	require.NoError(t, err)
	assert.False(t, saved)
	saved, err = a.Save(ctx, "ch1", "", "<p>x</p>")
	require.NoError(t, err)
	assert.False(t, saved)

	all, _ := store.Scan(ctx, "")
	assert.Empty(t, all)

	_, found, err := a.Load(ctx, "ch1", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalEnumerate(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, _ := NewAdapter(BackendLocal, store, nil)

	_, _ = a.Save(ctx, "ch1", "1", "<p>one</p>")
	_, _ = a.Save(ctx, "ch1", "10", "<p>ten</p>")
	_, _ = a.Save(ctx, "ch10", "1", "<p>other assignment</p>")
	a.SaveParagraphs(ctx, "ch1", "3", paragraphs.FromValues(url.Values{"p1": {"Alpha"}}))
	a.SaveParagraphs(ctx, "ch10", "4", paragraphs.FromValues(url.Values{"p1": {"Beta"}}))

	ans, err := a.EnumerateAnswers(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "<p>one</p>", "10": "<p>ten</p>"}, ans)

	subs, err := a.EnumerateParagraphSubIDs(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"3": {}}, subs)
}

func TestExtensionBackend(t *testing.T) {
	ctx := context.Background()
	ext := newFakeExtension()
	store := kv.NewMemoryStore()
	a, err := NewAdapter(BackendExtension, store, ext)
	require.NoError(t, err)
	assert.Equal(t, BackendExtension, a.Backend())

	saved, err := a.Save(ctx, "ch1", "2", "<p>via extension</p>")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "<p>via extension</p>", ext.data["ch1|2"])

	_, _ = a.Save(ctx, "ch1", "3", "<p><br></p>")
	assert.Equal(t, 1, ext.saves, "placeholders never reach the extension")

	local, _ := store.Scan(ctx, "")
	assert.Empty(t, local, "answers stay out of the local store")

	got, found, err := a.Load(ctx, "ch1", "2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<p>via extension</p>", got)

	ext.data["ch2|1"] = "<p>elsewhere</p>"
	ext.data["malformed"] = "<p>ignored</p>"
	ans, err := a.EnumerateAnswers(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2": "<p>via extension</p>"}, ans)

	// paragraph sets stay local even with the extension active
	a.SaveParagraphs(ctx, "ch1", "5", paragraphs.FromValues(url.Values{"p1": {"Alpha"}}))
	_, ok, _ := store.Get(ctx, keys.ParagraphsKey("ch1", "5"))
	assert.True(t, ok)

	ext.getErr = errors.New("boom")
	_, err = a.EnumerateAnswers(ctx, "ch1")
	assert.Error(t, err)
}

func TestExtensionBackendRequiresExtension(t *testing.T) {
	_, err := NewAdapter(BackendExtension, kv.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, ErrNoExtension)
	assert.Equal(t, BackendExtension, BackendFor(true))
	assert.Equal(t, BackendLocal, BackendFor(false))
}

func TestLoadParagraphsDegrades(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, _ := NewAdapter(BackendLocal, store, nil)

	assert.Empty(t, a.LoadParagraphs(ctx, "ch1", "1"))

	require.NoError(t, store.Set(ctx, keys.ParagraphsKey("ch1", "1"), "{not json"))
	assert.Empty(t, a.LoadParagraphs(ctx, "ch1", "1"))

	a.SaveParagraphs(ctx, "ch1", "2", paragraphs.FromValues(url.Values{"p10": {"Kappa"}, "p2": {"Beta"}}))
	set := a.LoadParagraphs(ctx, "ch1", "2")
	require.Len(t, set, 2)
	assert.Equal(t, "Beta", set[0].Text)
	assert.Equal(t, "Kappa", set[1].Text)
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestSaveParagraphsSwallowsErrors(t *testing.T) {
	a, _ := NewAdapter(BackendLocal, failingStore{kv.NewMemoryStore()}, nil)
	assert.NotPanics(t, func() {
		a.SaveParagraphs(context.Background(), "ch1", "1", paragraphs.FromValues(url.Values{"p1": {"x"}}))
	})
}
