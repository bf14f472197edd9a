package http

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/exports"
	"github.com/mind-engage/mindengage-answerbook/internal/storage"
)

func MountExports(r chi.Router, e *exports.Exporter, d *autosave.Debouncer) {
	// POST /exports/{assignmentID}?format=html|md|pdf
	r.Post("/{assignmentID}", func(w http.ResponseWriter, r *http.Request) {
		f, err := exports.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		flushed(r.Context(), d)
		key, err := e.Export(r.Context(), chi.URLParam(r, "assignmentID"), f)
		if err != nil {
			printError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"key": key})
	})

	// GET /exports/*   -> returns the export stored under exports/<whatever follows>
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if rest == "" {
			http.Error(w, "key required", http.StatusBadRequest)
			return
		}
		key := "exports/" + rest
		rc, err := e.Blobs.Get(key)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				status = http.StatusNotFound
			}
			http.Error(w, "not found: "+err.Error(), status)
			return
		}
		defer rc.Close()

		if f, err := exports.ParseFormat(strings.TrimPrefix(path.Ext(key), ".")); err == nil {
			w.Header().Set("Content-Type", f.ContentType())
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		_, _ = io.Copy(w, rc)
	})
}
