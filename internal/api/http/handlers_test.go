package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-answerbook/internal/aggregate"
	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/bridge"
	"github.com/mind-engage/mindengage-answerbook/internal/db"
	"github.com/mind-engage/mindengage-answerbook/internal/exports"
	"github.com/mind-engage/mindengage-answerbook/internal/kv"
	"github.com/mind-engage/mindengage-answerbook/internal/metrics"
	"github.com/mind-engage/mindengage-answerbook/internal/printer"
	"github.com/mind-engage/mindengage-answerbook/internal/storage"
	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

type fixture struct {
	srv     *httptest.Server
	adapter *answers.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a, err := answers.NewAdapter(answers.BackendLocal, kv.NewMemoryStore(), nil)
	require.NoError(t, err)
	d := autosave.New(a, 10*time.Millisecond)
	agg := aggregate.New(a)
	bs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	r := NewRouter(Deps{
		Adapter:    a,
		Autosave:   d,
		Aggregator: agg,
		PrintPage:  printer.DefaultPageOptions(),
		Exporter:   &exports.Exporter{Aggregator: agg, Blobs: bs, Page: printer.DefaultPageOptions()},
		Hub:        bridge.NewHub(nil),
		Auth:       auth.NewAuthService("test-secret"),
		Gatherer:   reg,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		d.Close(context.Background())
	})
	return &fixture{srv: srv, adapter: a}
}

func (f *fixture) do(t *testing.T, method, path string, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (f *fixture) save(t *testing.T, a, s, content string) saveResponse {
	t.Helper()
	b, _ := json.Marshal(answerBody{AssignmentID: a, SubID: s, Content: content})
	resp, body := f.do(t, http.MethodPut, "/api/answers", string(b))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var out saveResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestAnswerPageCapturesParagraphs(t *testing.T) {
	f := newFixture(t)
	q := url.Values{"assignmentId": {"chapter3_Fractions"}, "subIds": {"2"}, "p2": {"*Beta*"}, "p1": {"**Alpha**"}}

	resp, body := f.do(t, http.MethodGet, "/?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<div class="paragraphs-container"><p><strong>Alpha</strong></p><p><em>Beta</em></p></div>`)
	assert.Contains(t, body, "Alle Inhalte drucken / Als PDF speichern")
	assert.Contains(t, body, "<title>Fractions</title>")

	set := f.adapter.LoadParagraphs(context.Background(), "chapter3_Fractions", "2")
	require.Len(t, set, 2)

	// a reload without paragraph parameters shows the stored set
	_, body = f.do(t, http.MethodGet, "/?assignmentId=chapter3_Fractions&subIds=2", "")
	assert.Contains(t, body, "<p><strong>Alpha</strong></p>")
}

func TestAnswerPageEditorSetup(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.Save(context.Background(), "ch1", "1", `<p>ok</p><script>alert(1)</script>`)
	require.NoError(t, err)

	resp, body := f.do(t, http.MethodGet, "/?assignmentId=ch1&subIds=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `toolbar: [["bold", "italic", "underline"], ["clean"]]`)
	assert.NotContains(t, body, `list: "bullet"`)
	assert.Contains(t, body, `"list autofill override"`)
	assert.Contains(t, body, `prefix: /^\s*([*]|\d+\.)$/`)
	assert.Contains(t, body, `quill.root.addEventListener("paste"`)
	assert.Contains(t, body, "deaktiviert")
	assert.Contains(t, body, `"Gib hier deinen Text ein..."`)
	assert.Contains(t, body, "ok")
	assert.NotContains(t, body, "alert(1)")
}

func TestSaveAndLoadAnswer(t *testing.T) {
	f := newFixture(t)

	out := f.save(t, "chapter3_Fractions", "1", "<p>Meine Antwort</p>")
	assert.True(t, out.Saved)

	resp, body := f.do(t, http.MethodGet, "/api/answers?assignmentId=chapter3_Fractions&subIds=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got loadResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, loadResponse{Content: "<p>Meine Antwort</p>", Found: true}, got)

	_, body = f.do(t, http.MethodGet, "/?assignmentId=chapter3_Fractions&subIds=1", "")
	assert.Contains(t, body, `Meine Antwort`)
}

func TestSaveNoOps(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.save(t, "", "1", "<p>x</p>").Saved)
	assert.False(t, f.save(t, "ch1", "1", "<p><br></p>").Saved)

	_, body := f.do(t, http.MethodGet, "/api/answers?assignmentId=ch1&subIds=1", "")
	assert.JSONEq(t, `{"content":"","found":false}`, body)

	resp, _ := f.do(t, http.MethodPut, "/api/answers", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/print?assignmentId=chapter3_Fractions", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, aggregate.NoticeNothingFound)

	f.save(t, "chapter3_Fractions", "10", "<p>zehn</p>")
	f.save(t, "chapter3_Fractions", "2", "<p>zwei</p>")

	resp, body = f.do(t, http.MethodGet, "/print?assignmentId=chapter3_Fractions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<title>Fractions</title>")
	assert.Less(t, strings.Index(body, "Thema: 2"), strings.Index(body, "Thema: 10"))
	assert.Contains(t, body, "window.print()")
}

func TestExportMarkdownAndPDF(t *testing.T) {
	f := newFixture(t)
	f.save(t, "chapter3_Fractions", "1", "<p><em>eins</em></p>")

	resp, body := f.do(t, http.MethodGet, "/export.md?assignmentId=chapter3_Fractions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename=Fractions.md`)
	assert.Contains(t, body, "## Fractions")
	assert.Contains(t, body, "*eins*")

	resp, _ = f.do(t, http.MethodGet, "/export.pdf?assignmentId=chapter3_Fractions", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestStoredExports(t *testing.T) {
	f := newFixture(t)
	f.save(t, "chapter3_Fractions", "1", "<p>eins</p>")

	resp, body := f.do(t, http.MethodPost, "/exports/chapter3_Fractions?format=md", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.True(t, strings.HasPrefix(out["key"], "exports/chapter3_Fractions/"))

	resp, body = f.do(t, http.MethodGet, "/"+out["key"], "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "eins")

	resp, _ = f.do(t, http.MethodPost, "/exports/chapter3_Fractions?format=docx", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/exports/nothing_here", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/exports/missing.md", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/bridge/ws", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	tok, err := auth.NewAuthService("test-secret").Issue("someone", "student", time.Hour)
	require.NoError(t, err)
	resp, _ = f.do(t, http.MethodGet, "/bridge/ws?token="+tok, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	f.do(t, http.MethodGet, "/api/answers", "")
	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "http_requests_total")
}

func TestEventsJournal(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:api_events_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer dbh.Close()
	journal := syncx.NewEventRepo(dbh)

	a, err := answers.NewAdapter(answers.BackendLocal, kv.NewSQLStore(dbh, "sqlite"), nil, answers.WithJournal(journal))
	require.NoError(t, err)
	d := autosave.New(a, 5*time.Millisecond)
	defer d.Close(ctx)
	agg := aggregate.New(a, aggregate.WithJournal(journal))
	srv := httptest.NewServer(NewRouter(Deps{Adapter: a, Autosave: d, Aggregator: agg, Events: journal}))
	defer srv.Close()
	f := &fixture{srv: srv, adapter: a}

	f.save(t, "chapter3_Fractions", "1", "<p>eins</p>")
	resp, _ := f.do(t, http.MethodGet, "/print?assignmentId=chapter3_Fractions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []syncx.Event
	require.NoError(t, json.Unmarshal([]byte(body), &events))
	require.Len(t, events, 2)
	assert.Equal(t, syncx.TypeAnswerSaved, events[0].Type)
	assert.Equal(t, syncx.TypePrintRendered, events[1].Type)
	assert.JSONEq(t, `{"blocks":1}`, events[1].DataJSON)

	_, body = f.do(t, http.MethodGet, "/api/events?after="+strconv.FormatInt(events[0].Offset, 10), "")
	require.NoError(t, json.Unmarshal([]byte(body), &events))
	require.Len(t, events, 1)

	resp, _ = f.do(t, http.MethodGet, "/api/events?after=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
