package twin

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

type storyRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"mediaUrls"`
	Location  string   `json:"location"`
}

// createStory handles POST /api/stories.
func (s *Server) createStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Title and content are required")
		return
	}
	story := s.state.createStory(Story{
		UserID:    claimsFrom(r.Context()).UserID,
		Title:     req.Title,
		Content:   req.Content,
		MediaURLs: req.MediaURLs,
		Location:  req.Location,
	})
	writeJSON(w, http.StatusOK, story)
}

func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listStories())
}

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	story, ok := s.state.story(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// likeStory handles POST /api/stories/{id}/like, a toggle.
func (s *Server) likeStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.state.toggleLike(chi.URLParam(r, "id"), claimsFrom(r.Context()).UserID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) commentStory(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Comment text is required")
		return
	}
	story, err := s.state.addComment(chi.URLParam(r, "id"), claimsFrom(r.Context()).UserID, req.Text)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// deleteStory handles DELETE /api/stories/{id}: owner or admin.
func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	story, ok := s.state.story(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	claims := claimsFrom(r.Context())
	if story.UserID != claims.UserID && claims.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	s.state.deleteStory(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Story deleted successfully"})
}

type eventRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Date         string `json:"date"`
	Location     string `json:"location"`
	EventType    string `json:"eventType"`
	MaxAttendees int    `json:"maxAttendees"`
	ImageURL     string `json:"imageUrl"`
}

func (s *Server) canCreateEvents(role string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleClub:
		return s.policy.ClubCanCreateEvents
	case RoleCreator:
		return s.policy.CreatorCanCreateEvents
	default:
		return false
	}
}

// createEvent handles POST /api/events, gated by role.
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !s.canCreateEvents(claims.Role) {
		writeError(w, http.StatusForbidden, "Only administrators can create events")
		return
	}
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.Description == "" || req.Date == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if req.EventType == "" {
		req.EventType = EventTypes[0]
	}
	if !slices.Contains(EventTypes, req.EventType) {
		writeError(w, http.StatusBadRequest, "Invalid event type")
		return
	}
	if req.MaxAttendees < 0 {
		writeError(w, http.StatusBadRequest, "maxAttendees must not be negative")
		return
	}

	ev := s.state.createEvent(Event{
		CreatorID:    claims.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Date:         req.Date,
		Location:     req.Location,
		EventType:    req.EventType,
		MaxAttendees: req.MaxAttendees,
		ImageURL:     req.ImageURL,
	})
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listEvents())
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.state.event(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// rsvpEvent handles POST /api/events/{id}/rsvp, a toggle bounded by
// maxAttendees.
func (s *Server) rsvpEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.state.toggleRSVP(chi.URLParam(r, "id"), claimsFrom(r.Context()).UserID)
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, errEventFull):
		writeError(w, http.StatusBadRequest, "Event is full")
	default:
		writeJSON(w, http.StatusOK, ev)
	}
}

// deleteEvent handles DELETE /api/events/{id}: creator or admin.
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, ok := s.state.event(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	claims := claimsFrom(r.Context())
	if ev.CreatorID != claims.UserID && claims.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	s.state.deleteEvent(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}
