package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-answerbook/internal/answers"
	"github.com/mind-engage/mindengage-answerbook/internal/autosave"
	"github.com/mind-engage/mindengage-answerbook/internal/bridge"
)

type answerBody struct {
	AssignmentID string `json:"assignmentId"`
	SubID        string `json:"subIds"`
	Content      string `json:"content"`
}

type loadResponse struct {
	Content string `json:"content"`
	Found   bool   `json:"found"`
}

type saveResponse struct {
	Saved      bool `json:"saved"`
	Superseded bool `json:"superseded,omitempty"`
	Pending    bool `json:"pending,omitempty"`
}

// statusFor maps storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, bridge.ErrNoPeer):
		return http.StatusServiceUnavailable
	case errors.Is(err, autosave.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetAnswerHandler returns the stored answer; unsaved edits win over storage.
func GetAnswerHandler(a *answers.Adapter, d *autosave.Debouncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		aid, sid := q.Get("assignmentId"), q.Get("subIds")
		if aid == "" || sid == "" {
			writeJSON(w, loadResponse{})
			return
		}
		if html, ok := d.Pending(aid, sid); ok {
			writeJSON(w, loadResponse{Content: html, Found: true})
			return
		}
		html, found, err := a.Load(r.Context(), aid, sid)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, loadResponse{Content: html, Found: found})
	}
}

// PutAnswerHandler submits the editor state to the debouncer and answers
// once that state is saved, superseded by a newer edit, or the client leaves.
func PutAnswerHandler(d *autosave.Debouncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.AssignmentID == "" || req.SubID == "" {
			writeJSON(w, saveResponse{})
			return
		}

		done := d.Submit(req.AssignmentID, req.SubID, req.Content)
		select {
		case res := <-done:
			if res.Err != nil {
				http.Error(w, res.Err.Error(), statusFor(res.Err))
				return
			}
			writeJSON(w, saveResponse{Saved: res.Saved, Superseded: res.Superseded})
		case <-r.Context().Done():
			writeJSONStatus(w, http.StatusAccepted, saveResponse{Pending: true})
		}
	}
}
