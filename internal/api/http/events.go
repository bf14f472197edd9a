package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-answerbook/internal/sync"
)

// EventsHandler lists journal events after ?after= (default 0), at most ?limit=.
func EventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if v := q.Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "bad after", 400)
				return
			}
			after = n
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit > 1000 {
			limit = 1000
		}
		events, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		writeJSON(w, events)
	}
}
