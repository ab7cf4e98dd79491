package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/pipeline"
	"github.com/vibarr/core/internal/rules"
	"github.com/vibarr/core/internal/scheduler"
	"github.com/vibarr/core/internal/store"
)

// allCategories lists every RecommendationCategory, for list endpoints that
// accept no category filter.
var allCategories = []store.RecommendationCategory{
	store.CategoryDiscoverWeekly, store.CategoryReleaseRadar, store.CategorySimilarArtists,
	store.CategoryDeepCuts, store.CategoryGenreExplore, store.CategoryMoodBased,
}

// api bundles the daemon dependencies its net/http handlers need. Routes
// are registered with Go 1.22+ ServeMux method+path patterns, matching the
// plain net/http style the teacher's server.go already uses rather than
// pulling in a router dependency nothing else in the pack needs.
type api struct {
	store     *store.Store
	settings  *config.Store
	pipeline  *pipeline.Pipeline
	rules     *rules.Engine
	scheduler *scheduler.Scheduler
	jobs      map[string]scheduler.Job
	log       zerolog.Logger
}

func newMux(a *api, ready func() bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /wishlist", a.listWishlist)
	mux.HandleFunc("POST /wishlist", a.createWishlistItem)
	mux.HandleFunc("DELETE /wishlist/{id}", a.deleteWishlistItem)
	mux.HandleFunc("POST /wishlist/{id}/search", a.searchWishlistItem)

	mux.HandleFunc("GET /recommendations", a.listRecommendations)
	mux.HandleFunc("POST /recommendations/{id}/dismiss", a.dismissRecommendation)
	mux.HandleFunc("POST /recommendations/{id}/wishlist", a.addRecommendationToWishlist)

	mux.HandleFunc("GET /rules", a.listRules)
	mux.HandleFunc("POST /rules", a.createRule)

	mux.HandleFunc("POST /jobs/{name}/run", a.runJob)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *api) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		a.log.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathUint(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

func (a *api) listWishlist(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	statuses := []store.WishlistStatus{
		store.WishlistWanted, store.WishlistSearching, store.WishlistFound,
		store.WishlistDownloading, store.WishlistImporting, store.WishlistDownloaded, store.WishlistFailed,
	}
	if statusParam != "" {
		statuses = []store.WishlistStatus{store.WishlistStatus(statusParam)}
	}
	items, err := a.store.WishlistItemsByStatus(r.Context(), statuses...)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type createWishlistRequest struct {
	Type            string `json:"type"`
	ArtistName      string `json:"artist_name"`
	AlbumTitle      string `json:"album_title"`
	PreferredFormat string `json:"preferred_format"`
	AutoDownload    bool   `json:"auto_download"`
	Notes           string `json:"notes"`
}

func (a *api) createWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req createWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	item := &store.WishlistItem{
		Type:            store.WishlistItemType(req.Type),
		ArtistName:      req.ArtistName,
		AlbumTitle:      req.AlbumTitle,
		PreferredFormat: req.PreferredFormat,
		AutoDownload:    req.AutoDownload,
		Notes:           req.Notes,
		Status:          store.WishlistWanted,
		Source:          store.SourceManual,
		Priority:        store.PriorityNormal,
	}
	if err := a.store.CreateWishlistItem(r.Context(), item); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if a.rules != nil {
		_ = a.rules.Fire(r.Context(), rules.TriggerWishlistAdded, rules.Context{
			"wishlist_item_id": item.ID,
			"artist_name":      item.ArtistName,
			"album_title":      item.AlbumTitle,
			"source":           string(item.Source),
		})
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *api) deleteWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	if err := a.store.DeleteWishlistItem(r.Context(), id); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) searchWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	if err := a.pipeline.Search(r.Context(), id, true); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "searching"})
}

func (a *api) listRecommendations(w http.ResponseWriter, r *http.Request) {
	categoryParam := r.URL.Query().Get("category")
	categories := allCategories
	if categoryParam != "" {
		categories = []store.RecommendationCategory{store.RecommendationCategory(categoryParam)}
	}
	var out []store.Recommendation
	for _, c := range categories {
		recs, err := a.store.ActiveRecommendations(r.Context(), c)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, recs...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) dismissRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	if err := a.store.DismissRecommendation(r.Context(), id); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addRecommendationToWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, errInvalidID)
		return
	}
	if err := a.store.MarkRecommendationAddedToWishlist(r.Context(), id); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listRules(w http.ResponseWriter, r *http.Request) {
	triggerParam := r.URL.Query().Get("trigger")
	if triggerParam == "" {
		a.writeError(w, http.StatusBadRequest, errMissingTrigger)
		return
	}
	out, err := a.store.EnabledRulesForTrigger(r.Context(), triggerParam)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) createRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string          `json:"name"`
		Trigger    string          `json:"trigger"`
		Conditions json.RawMessage `json:"conditions"`
		Actions    json.RawMessage `json:"actions"`
		Priority   int             `json:"priority"`
		Enabled    bool            `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	rule := &store.AutomationRule{
		Name:       req.Name,
		Trigger:    req.Trigger,
		Conditions: store.JSONRaw(req.Conditions),
		Actions:    store.JSONRaw(req.Actions),
		Priority:   req.Priority,
		Enabled:    req.Enabled,
	}
	if err := a.store.CreateAutomationRule(r.Context(), rule); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *api) runJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	job, ok := a.jobs[name]
	if !ok {
		a.writeError(w, http.StatusNotFound, errUnknownJob)
		return
	}
	a.scheduler.RunNow(job)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job": name})
}

var (
	errInvalidID      = jsonErr("invalid id")
	errMissingTrigger = jsonErr("trigger query parameter is required")
	errUnknownJob     = jsonErr("unknown job name")
)

type jsonErr string

func (e jsonErr) Error() string { return string(e) }

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestTimeout bounds how long any single HTTP handler may run, so a slow
// integration call never pins an http.Server worker goroutine forever. The
// /ws route bypasses it: the WebSocket upgrade needs a ResponseWriter that
// can be hijacked, which http.TimeoutHandler's is not, and the connection
// stays open for as long as the client listens.
const requestTimeout = 30 * time.Second

func withTimeout(next http.Handler) http.Handler {
	timed := http.TimeoutHandler(next, requestTimeout, `{"error":"request timed out"}`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		timed.ServeHTTP(w, r)
	})
}
