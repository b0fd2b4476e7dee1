package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tinoosan/vodcache/internal/events"
	"github.com/tinoosan/vodcache/internal/fetcher"
	"github.com/tinoosan/vodcache/internal/remux"
	"github.com/tinoosan/vodcache/internal/repo"
	"github.com/tinoosan/vodcache/internal/resolver"
	"github.com/tinoosan/vodcache/internal/service"
	"github.com/tinoosan/vodcache/internal/stream"
)

// StreamHandler serves asset streams and the v1 API.
type StreamHandler struct {
	l       *slog.Logger
	svc     *service.Service
	history repo.HistoryReader
	hub     *events.Hub
	gate    stream.Gate
	tailer  stream.Tailer
	remuxer *remux.Remuxer

	hlsMu sync.Mutex
}

func NewStreamHandler(l *slog.Logger, svc *service.Service, history repo.HistoryReader, hub *events.Hub, gate stream.Gate, tailer stream.Tailer, remuxer *remux.Remuxer) *StreamHandler {
	return &StreamHandler{
		l:       l,
		svc:     svc,
		history: history,
		hub:     hub,
		gate:    gate,
		tailer:  tailer,
		remuxer: remuxer,
	}
}

// jobStatusCode maps a job failure to the client-facing status. Upstream
// failures (resolution timeout, transfer errors) are bad-gateway class.
func jobStatusCode(err error) int {
	var te *fetcher.TransferError
	switch {
	case errors.Is(err, resolver.ErrTimeout), errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StreamAsset serves GET /stream/{id}: a fresh complete entry is served as a
// plain (range-capable) file; anything else joins or starts the fetch job,
// waits behind the buffering gate and tails the growing cache file.
func (h *StreamHandler) StreamAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		markErr(w, ErrMissingAsset)
		http.Error(w, ErrMissingAsset.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.Ensure(r.Context(), id)
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to prepare asset", http.StatusInternalServerError)
		return
	}
	if res.CacheHit {
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeFile(w, r, res.Path)
		return
	}

	if err := h.gate.Wait(r.Context(), res.Path, res.Job); err != nil {
		markErr(w, err)
		return
	}
	// Fail before committing bytes when the job already died.
	if res.Job.Terminal() {
		if jerr := res.Job.Err(); jerr != nil {
			markErr(w, jerr)
			http.Error(w, "upstream fetch failed", jobStatusCode(jerr))
			return
		}
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	if _, err := h.tailer.Stream(r.Context(), res.Path, res.Job, w); err != nil {
		// Bytes are already committed: an abrupt end is the only honest
		// signal. Log, affect nothing else.
		markErr(w, err)
	}
}

// StreamFragmented serves GET /stream/{id}/fmp4: waits for the cache entry to
// finish and pipes it through the remux filter as fragmented MP4. The filter
// process dies with the connection.
func (h *StreamHandler) StreamFragmented(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, ok := h.ensureComplete(w, r, id)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	if err := h.remuxer.Fragmented(r.Context(), path, w); err != nil {
		markErr(w, err)
	}
}

var hlsFileRe = regexp.MustCompile(`^(index\.m3u8|seg\d{5}\.ts)$`)

// ServeHLS serves GET /hls/{id}/{file}: generates the segmented variant on
// first access, then serves the playlist and segments from the cache dir.
func (h *StreamHandler) ServeHLS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, file := vars["id"], vars["file"]
	if !hlsFileRe.MatchString(file) {
		markErr(w, ErrHLSFile)
		http.Error(w, ErrHLSFile.Error(), http.StatusNotFound)
		return
	}
	path, ok := h.ensureComplete(w, r, id)
	if !ok {
		return
	}

	dir := h.svc.Cache().HLSPath(id)
	playlist := filepath.Join(dir, "index.m3u8")
	h.hlsMu.Lock()
	if _, err := os.Stat(playlist); err != nil {
		if err := h.remuxer.SegmentHLS(r.Context(), path, dir); err != nil {
			h.hlsMu.Unlock()
			markErr(w, err)
			http.Error(w, "repackaging failed", http.StatusBadGateway)
			return
		}
	}
	h.hlsMu.Unlock()

	if filepath.Ext(file) == ".m3u8" {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	} else {
		w.Header().Set("Content-Type", "video/mp2t")
	}
	http.ServeFile(w, r, filepath.Join(dir, file))
}

// ensureComplete resolves id to a fully fetched cache file, waiting on the
// shared job when one is in flight. Writes the error response itself when it
// returns ok=false.
func (h *StreamHandler) ensureComplete(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	if id == "" {
		markErr(w, ErrMissingAsset)
		http.Error(w, ErrMissingAsset.Error(), http.StatusBadRequest)
		return "", false
	}
	res, err := h.svc.Ensure(r.Context(), id)
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to prepare asset", http.StatusInternalServerError)
		return "", false
	}
	if res.CacheHit {
		return res.Path, true
	}
	select {
	case <-r.Context().Done():
		markErr(w, r.Context().Err())
		return "", false
	case <-res.Job.Done():
	}
	if jerr := res.Job.Err(); jerr != nil {
		markErr(w, jerr)
		http.Error(w, "upstream fetch failed", jobStatusCode(jerr))
		return "", false
	}
	return res.Path, true
}

// GetJobs serves GET /v1/jobs.
func (h *StreamHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.svc.Jobs()); err != nil {
		markErr(w, err)
	}
}

// GetHistory serves GET /v1/history with optional ?asset= and ?limit= filters.
func (h *StreamHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if assetID := r.URL.Query().Get("asset"); assetID != "" {
		recs, err := h.history.ByAsset(ctx, assetID)
		if err != nil {
			markErr(w, err)
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
		return
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := h.history.List(ctx, limit)
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recs)
}

// Events serves GET /v1/events: a websocket feed of job events.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, e); err != nil {
				return
			}
		}
	}
}
