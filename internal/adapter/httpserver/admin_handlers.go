package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type cacheState struct {
	Enabled bool `json:"enabled"`
	Entries int  `json:"entries"`
}

type cacheToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// MountAdmin mounts the cache administration routes behind Basic Auth. It is
// a no-op unless admin credentials are configured.
func (s *Server) MountAdmin(r chi.Router) {
	if !s.Cfg.AdminEnabled() || s.Cache == nil {
		return
	}
	r.Route("/api/ai/cache", func(ar chi.Router) {
		ar.Use(BasicAuthGuard(s.Cfg.AdminUsername, s.Cfg.AdminPasswordHash))
		ar.Get("/", s.CacheStateHandler)
		ar.Delete("/", s.CacheClearHandler)
		ar.Put("/enabled", s.CacheToggleHandler)
	})
}

// CacheStateHandler reports whether the cache is enabled and its size.
func (s *Server) CacheStateHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.Cache.Len(r.Context())
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, cacheState{Enabled: s.Cache.Enabled(), Entries: n})
}

// CacheClearHandler removes every cached entry.
func (s *Server) CacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Cache.Clear(r.Context()); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CacheToggleHandler enables or disables the cache at runtime.
func (s *Server) CacheToggleHandler(w http.ResponseWriter, r *http.Request) {
	var req cacheToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.Cache.SetEnabled(*req.Enabled)
	n, _ := s.Cache.Len(r.Context())
	writeJSON(w, http.StatusOK, cacheState{Enabled: s.Cache.Enabled(), Entries: n})
}
