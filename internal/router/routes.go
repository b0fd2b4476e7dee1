package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/tinoosan/vodcache/api/v1"
	"github.com/tinoosan/vodcache/internal/cache"
)

// New sets up the application routes and required middleware.
func New(logger *slog.Logger, h *v1.StreamHandler, store *cache.Store) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Writable(); err != nil {
			logger.Error("readiness probe", "err", err)
			http.Error(w, "cache dir not writable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			logger.Error("write readyz response", "err", err)
		}
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.Use(v1.RequestID)
	r.Use(h.Log)

	// Streaming surface
	get := r.Methods("GET").Subrouter()
	get.HandleFunc("/stream/{id}", h.StreamAsset)
	get.HandleFunc("/stream/{id}/fmp4", h.StreamFragmented)
	get.HandleFunc("/hls/{id}/{file}", h.ServeHLS)

	// Introspection API
	api := r.PathPrefix("/v1").Methods("GET").Subrouter()
	api.HandleFunc("/jobs", h.GetJobs)
	api.HandleFunc("/history", h.GetHistory)
	api.HandleFunc("/events", h.Events)

	return r
}
