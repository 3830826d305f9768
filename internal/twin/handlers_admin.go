package twin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) isAdmin(r *http.Request) bool {
	return claimsFrom(r.Context()).Role == RoleAdmin
}

// adminStats handles GET /api/admin/stats.
func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeError(w, s.policy.StatsDeniedStatus, "Admin access required")
		return
	}
	writeJSON(w, http.StatusOK, s.state.stats())
}

// adminDeleteStory handles DELETE /api/admin/stories/{id}.
func (s *Server) adminDeleteStory(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}
	id := chi.URLParam(r, "id")
	story, ok := s.state.story(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	s.state.deleteStory(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Story deleted successfully",
		"deletedStory": story,
	})
}

// adminDeleteEvent handles DELETE /api/admin/events/{id}.
func (s *Server) adminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}
	id := chi.URLParam(r, "id")
	ev, ok := s.state.event(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	s.state.deleteEvent(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Event deleted successfully",
		"deletedEvent": ev,
	})
}
