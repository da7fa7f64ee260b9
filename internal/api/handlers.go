package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/profiledir/internal/directory"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Recorder receives operation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	Operation(op, result string)
	ObserveSearch(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Operation(string, string)     {}
func (noopRecorder) ObserveSearch(time.Duration) {}

type AppDeps struct {
	Directory *directory.Directory
	Token     string       // when empty, mutating routes are open
	Metrics   Recorder     // optional
	Exporter  http.Handler // optional; served at /metrics
}

func (d AppDeps) recorder() Recorder {
	if d.Metrics == nil {
		return noopRecorder{}
	}
	return d.Metrics
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	if deps.Exporter != nil {
		r.Method(http.MethodGet, "/metrics", deps.Exporter)
	}

	r.Get("/profiles", handleSearchProfiles(deps))
	r.Get("/profiles/{id}", handleGetProfile(deps))
	r.Get("/tags", handleTags(deps))
	r.Get("/markers", handleMarkers(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/profiles", handleAddProfile(deps))
		r.Patch("/profiles/{id}", handleUpdateProfile(deps))
		r.Delete("/profiles/{id}", handleRemoveProfile(deps))
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", handleGetSession(deps))
		r.Get("/profiles", handleSessionProfiles(deps))
		r.Put("/search", handleSetSearch(deps))
		r.Put("/filters", handleSetFilters(deps))
		r.Get("/selection", handleGetSelection(deps))
		r.Put("/selection", handleSetSelection(deps))
		r.Delete("/selection", handleClearSelection(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleSearchProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := directory.Query{
			Term:      q.Get("q"),
			Tags:      splitTags(q["tag"]),
			Location:  q.Get("location"),
			AdminMode: parseBoolParam(r, "admin"),
		}

		start := time.Now()
		profiles := deps.Directory.Search(query)
		deps.recorder().ObserveSearch(time.Since(start))
		deps.recorder().Operation("search", "ok")

		limit := parseIntParam(r, "limit", 0, 0)
		offset := parseIntParam(r, "offset", 0, 0)
		profiles = paginate(profiles, offset, limit)

		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		p, err := deps.Directory.Get(id)
		if errors.Is(err, directory.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "profile %q not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func handleAddProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var p directory.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			deps.recorder().Operation("add", "invalid")
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		stored, err := deps.Directory.Add(p)
		var verr *directory.ValidationError
		if errors.As(err, &verr) {
			deps.recorder().Operation("add", "invalid")
			httpError(w, http.StatusUnprocessableEntity, "validation_error", "%s", verr.Error())
			return
		}
		if err != nil {
			deps.recorder().Operation("add", "error")
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add profile: %v", err)
			return
		}

		deps.recorder().Operation("add", "ok")
		w.Header().Set("Location", "/profiles/"+stored.ID)
		writeJSON(w, http.StatusCreated, stored)
	}
}

func handleUpdateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		id := chi.URLParam(r, "id")

		var patch directory.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			deps.recorder().Operation("update", "invalid")
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		updated, err := deps.Directory.Update(id, patch)
		if errors.Is(err, directory.ErrNotFound) {
			deps.recorder().Operation("update", "not_found")
			httpError(w, http.StatusNotFound, "not_found", "profile %q not found", id)
			return
		}
		if err != nil {
			deps.recorder().Operation("update", "error")
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
			return
		}

		deps.recorder().Operation("update", "ok")
		writeJSON(w, http.StatusOK, updated)
	}
}

func handleRemoveProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Directory.Remove(chi.URLParam(r, "id"))
		deps.recorder().Operation("remove", "ok")
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleTags(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Directory.Tags())
	}
}

func handleMarkers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Directory.Markers())
	}
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Directory.Session())
	}
}

func handleSessionProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		profiles := deps.Directory.List()
		deps.recorder().ObserveSearch(time.Since(start))
		deps.recorder().Operation("list", "ok")
		writeJSON(w, http.StatusOK, profiles)
	}
}

type searchRequest struct {
	Term string `json:"term"`
}

func handleSetSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		deps.Directory.SetSearchTerm(req.Term)
		writeJSON(w, http.StatusOK, deps.Directory.Session())
	}
}

type filtersRequest struct {
	Tags     *[]string `json:"tags"`
	Location *string   `json:"location"`
}

func handleSetFilters(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req filtersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Tags != nil {
			deps.Directory.SetTagFilter(*req.Tags)
		}
		if req.Location != nil {
			deps.Directory.SetLocationFilter(*req.Location)
		}
		writeJSON(w, http.StatusOK, deps.Directory.Session())
	}
}

func handleGetSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := deps.Directory.Selected()
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no profile selected")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type selectionRequest struct {
	ID string `json:"id"`
}

func handleSetSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req selectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		deps.Directory.Select(req.ID)
		writeJSON(w, http.StatusOK, deps.Directory.Session())
	}
}

func handleClearSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Directory.Select("")
		writeJSON(w, http.StatusOK, deps.Directory.Session())
	}
}

// splitTags accepts both repeated ?tag= parameters and comma-separated lists.
func splitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func paginate(profiles []directory.Profile, offset, limit int) []directory.Profile {
	if offset >= len(profiles) {
		return []directory.Profile{}
	}
	profiles = profiles[offset:]
	if limit > 0 && limit < len(profiles) {
		profiles = profiles[:limit]
	}
	return profiles
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func parseBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
