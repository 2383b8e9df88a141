package handler

import (
	"net/http"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, feed *FeedHandler) {
	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.HandleFunc("GET /calendar/{token}", feed.HandleCalendar)
}
