package twin

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Roles accepted at signup.
const (
	RoleRider   = "rider"
	RoleClub    = "club"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

var validRoles = map[string]bool{RoleRider: true, RoleClub: true, RoleCreator: true, RoleAdmin: true}

// EventTypes accepted when creating an event. Empty defaults to "ride".
var EventTypes = []string{"ride", "meetup", "race", "exhibition", "workshop"}

var (
	errNotFound   = errors.New("not found")
	errEmailTaken = errors.New("email already exists")
	errEventFull  = errors.New("event is full")
)

// User is a platform account. The password hash never leaves the twin.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Bio          string         `json:"bio"`
	ProfileImage string         `json:"profileImage"`
	BikeInfo     map[string]any `json:"bikeInfo"`
	ClubInfo     map[string]any `json:"clubInfo"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`

	passwordHash [32]byte
}

// Summary is the author/creator block embedded in stories and events.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage"`
}

func (u User) summary() *Summary {
	return &Summary{ID: u.ID, Name: u.Name, Role: u.Role, ProfileImage: u.ProfileImage}
}

// Comment on a story.
type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// Story is a ride report.
type Story struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"mediaUrls"`
	Location  string    `json:"location"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
	User      *Summary  `json:"user,omitempty"`
}

// Event is a scheduled ride or meetup. MaxAttendees 0 means unlimited.
type Event struct {
	ID           string   `json:"id"`
	CreatorID    string   `json:"creatorId"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Date         string   `json:"date"`
	Location     string   `json:"location"`
	EventType    string   `json:"eventType"`
	MaxAttendees int      `json:"maxAttendees"`
	ImageURL     string   `json:"imageUrl"`
	RSVPs        []string `json:"rsvps"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
	RSVPCount    *int     `json:"rsvpCount,omitempty"`
	Creator      *Summary `json:"creator,omitempty"`
}

// state holds every record in memory. Lists keep insertion order so
// responses are deterministic.
type state struct {
	mu  sync.Mutex
	now func() time.Time

	users   map[string]*User
	byEmail map[string]string
	stories map[string]*Story
	events  map[string]*Event

	userOrder, storyOrder, eventOrder []string
	counter                           int
}

func newState(now func() time.Time) *state {
	s := &state{now: now}
	s.reset()
	return s
}

func (s *state) reset() {
	s.users = make(map[string]*User)
	s.byEmail = make(map[string]string)
	s.stories = make(map[string]*Story)
	s.events = make(map[string]*Event)
	s.userOrder, s.storyOrder, s.eventOrder = nil, nil, nil
	s.counter = 0
}

// nextID returns "{prefix}_{counter}", e.g. "usr_000001". Caller holds mu.
func (s *state) nextID(prefix string) string {
	s.counter++
	return fmt.Sprintf("%s_%06d", prefix, s.counter)
}

func (s *state) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func hashPassword(p string) [32]byte {
	return sha256.Sum256([]byte("motosaga:" + p))
}

func (s *state) createUser(u User, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return User{}, errEmailTaken
	}
	u.ID = s.nextID("usr")
	u.passwordHash = hashPassword(password)
	u.CreatedAt = s.timestamp()
	u.UpdatedAt = u.CreatedAt
	if u.Role != RoleRider {
		u.BikeInfo = nil
	}
	if u.Role != RoleClub {
		u.ClubInfo = nil
	}

	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	s.userOrder = append(s.userOrder, u.ID)
	return u, nil
}

// authenticate returns the user only when email and password both match.
func (s *state) authenticate(email, password string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return User{}, false
	}
	u := s.users[id]
	want, got := u.passwordHash, hashPassword(password)
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return User{}, false
	}
	return *u, true
}

func (s *state) user(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// userUpdate holds the fields a profile update may change.
type userUpdate struct {
	Name         *string        `json:"name"`
	Bio          *string        `json:"bio"`
	ProfileImage *string        `json:"profileImage"`
	BikeInfo     map[string]any `json:"bikeInfo"`
	ClubInfo     map[string]any `json:"clubInfo"`
}

func (s *state) updateUser(id string, upd userUpdate) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, errNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfileImage != nil {
		u.ProfileImage = *upd.ProfileImage
	}
	if upd.BikeInfo != nil {
		u.BikeInfo = upd.BikeInfo
	}
	if upd.ClubInfo != nil {
		u.ClubInfo = upd.ClubInfo
	}
	u.UpdatedAt = s.timestamp()
	return *u, nil
}

func (s *state) summaryOf(userID string) *Summary {
	if u, ok := s.users[userID]; ok {
		return u.summary()
	}
	return nil
}

// storyView copies a story and attaches its author. Caller holds mu.
func (s *state) storyView(st *Story) Story {
	out := *st
	out.MediaURLs = append([]string{}, st.MediaURLs...)
	out.Likes = append([]string{}, st.Likes...)
	out.Comments = append([]Comment{}, st.Comments...)
	out.User = s.summaryOf(st.UserID)
	return out
}

func (s *state) createStory(st Story) Story {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.ID = s.nextID("sty")
	st.CreatedAt = s.timestamp()
	st.UpdatedAt = st.CreatedAt
	if st.MediaURLs == nil {
		st.MediaURLs = []string{}
	}
	st.Likes = []string{}
	st.Comments = []Comment{}
	s.stories[st.ID] = &st
	s.storyOrder = append(s.storyOrder, st.ID)
	return s.storyView(&st)
}

// listStories returns the newest stories first.
func (s *state) listStories() []Story {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Story, 0, len(s.storyOrder))
	for i := len(s.storyOrder) - 1; i >= 0; i-- {
		out = append(out, s.storyView(s.stories[s.storyOrder[i]]))
	}
	return out
}

func (s *state) story(id string) (Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[id]
	if !ok {
		return Story{}, false
	}
	return s.storyView(st), true
}

// toggleLike adds userID to the likes, or removes it when already present.
func (s *state) toggleLike(storyID, userID string) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stories[storyID]
	if !ok {
		return Story{}, errNotFound
	}
	if i := indexOf(st.Likes, userID); i >= 0 {
		st.Likes = append(st.Likes[:i], st.Likes[i+1:]...)
	} else {
		st.Likes = append(st.Likes, userID)
	}
	st.UpdatedAt = s.timestamp()
	return s.storyView(st), nil
}

func (s *state) addComment(storyID, userID, text string) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stories[storyID]
	if !ok {
		return Story{}, errNotFound
	}
	st.Comments = append(st.Comments, Comment{
		ID:        s.nextID("cmt"),
		UserID:    userID,
		Text:      text,
		CreatedAt: s.timestamp(),
	})
	st.UpdatedAt = s.timestamp()
	return s.storyView(st), nil
}

func (s *state) deleteStory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stories, id)
	s.storyOrder = remove(s.storyOrder, id)
}

// eventView copies an event. With detail set it carries the creator and
// RSVP count the list and get endpoints return.
func (s *state) eventView(ev *Event, detail bool) Event {
	out := *ev
	out.RSVPs = append([]string{}, ev.RSVPs...)
	if detail {
		n := len(ev.RSVPs)
		out.RSVPCount = &n
		out.Creator = s.summaryOf(ev.CreatorID)
	}
	return out
}

func (s *state) createEvent(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextID("evt")
	ev.CreatedAt = s.timestamp()
	ev.UpdatedAt = ev.CreatedAt
	ev.RSVPs = []string{}
	s.events[ev.ID] = &ev
	s.eventOrder = append(s.eventOrder, ev.ID)
	return s.eventView(&ev, false)
}

// listEvents returns events ordered by date, then creation.
func (s *state) listEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, len(s.eventOrder))
	for _, id := range s.eventOrder {
		out = append(out, s.eventView(s.events[id], true))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (s *state) event(id string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return Event{}, false
	}
	return s.eventView(ev, true), true
}

// toggleRSVP removes an existing RSVP or adds one, refusing when the event
// is at capacity.
func (s *state) toggleRSVP(eventID, userID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return Event{}, errNotFound
	}
	if i := indexOf(ev.RSVPs, userID); i >= 0 {
		ev.RSVPs = append(ev.RSVPs[:i], ev.RSVPs[i+1:]...)
	} else {
		if ev.MaxAttendees > 0 && len(ev.RSVPs) >= ev.MaxAttendees {
			return Event{}, errEventFull
		}
		ev.RSVPs = append(ev.RSVPs, userID)
	}
	ev.UpdatedAt = s.timestamp()
	return s.eventView(ev, false), nil
}

func (s *state) deleteEvent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	s.eventOrder = remove(s.eventOrder, id)
}

// RoleCount is one entry of the stats usersByRole breakdown.
type RoleCount struct {
	Role  string `json:"_id"`
	Count int    `json:"count"`
}

// Stats is the admin dashboard payload.
type Stats struct {
	TotalUsers    int         `json:"totalUsers"`
	TotalStories  int         `json:"totalStories"`
	TotalEvents   int         `json:"totalEvents"`
	UsersByRole   []RoleCount `json:"usersByRole"`
	RecentUsers   int         `json:"recentUsers"`
	RecentStories int         `json:"recentStories"`
	RecentEvents  int         `json:"recentEvents"`
}

// stats counts everything; "recent" means created in the last seven days.
func (s *state) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-7 * 24 * time.Hour).Format("2006-01-02T15:04:05.000Z")
	st := Stats{
		TotalUsers:   len(s.users),
		TotalStories: len(s.stories),
		TotalEvents:  len(s.events),
		UsersByRole:  []RoleCount{},
	}

	byRole := make(map[string]int)
	for _, u := range s.users {
		byRole[u.Role]++
		if u.CreatedAt >= cutoff {
			st.RecentUsers++
		}
	}
	for _, story := range s.stories {
		if story.CreatedAt >= cutoff {
			st.RecentStories++
		}
	}
	for _, ev := range s.events {
		if ev.CreatedAt >= cutoff {
			st.RecentEvents++
		}
	}
	roles := make([]string, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	for _, r := range roles {
		st.UsersByRole = append(st.UsersByRole, RoleCount{Role: r, Count: byRole[r]})
	}
	return st
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

func remove(list []string, v string) []string {
	if i := indexOf(list, v); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
