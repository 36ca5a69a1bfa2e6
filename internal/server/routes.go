package server

import (
	"net/http"

	jsonwriter "github.com/dgellow/line-relay/internal/json"
)

// Routes is implemented by each service's handler set
type Routes interface {
	Register(mux *http.ServeMux)
}

// Claimer is implemented by route sets that take requests before the mux
// matches or cleans their path
type Claimer interface {
	Claim(r *http.Request) (http.HandlerFunc, bool)
}

// NewHandler builds the full handler for one service: health check, the
// service's routes, a JSON 404 for anything else, logging and panic recovery.
func NewHandler(service string, routes ...Routes) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler(service))
	for _, r := range routes {
		r.Register(mux)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "no route for "+r.URL.Path)
	})

	var claimers []Claimer
	for _, r := range routes {
		if c, ok := r.(Claimer); ok {
			claimers = append(claimers, c)
		}
	}
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, c := range claimers {
			if h, ok := c.Claim(r); ok {
				h(w, r)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})

	return ChainMiddleware(root,
		NewRecoverMiddleware(service),
		NewLoggerMiddleware(service),
	)
}
