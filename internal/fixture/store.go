// Package fixture holds the state produced by earlier steps of a run
// (actors with their tokens, ids of created stories and events, uploaded
// media urls) so later steps can reference it by name.
//
// Entries are keyed by (Kind, name): the same name under two kinds never
// collides. A store belongs to a single run and is touched by one step at a
// time, so it carries no locking.
package fixture

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Kind partitions the fixture namespace.
type Kind string

const (
	KindActor Kind = "actor"
	KindStory Kind = "story"
	KindEvent Kind = "event"
	KindMedia Kind = "media"
	KindUser  Kind = "user"
)

// ErrNotFound is wrapped by every MissingError.
var ErrNotFound = errors.New("fixture not found")

// MissingError names the fixture a step needed but the run never produced.
type MissingError struct {
	Kind Kind
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("precondition not met: %s %q was never recorded", e.Kind, e.Name)
}

func (e *MissingError) Unwrap() error {
	return ErrNotFound
}

// Ref addresses one fixture.
type Ref struct {
	Kind Kind
	Name string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.Name
}

// Role is a platform user role.
type Role string

const (
	RoleRider   Role = "rider"
	RoleClub    Role = "club"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleRider, RoleClub, RoleCreator, RoleAdmin}

// Actor is a logical identity used across the run.
type Actor struct {
	Name     string
	Role     Role
	Email    string
	Password string
	Token    string
	UserID   string
}

// Store maps (Kind, name) to values.
type Store struct {
	entries map[Ref]any
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[Ref]any)}
}

// Put records or replaces a fixture.
func (s *Store) Put(kind Kind, name string, value any) {
	s.entries[Ref{Kind: kind, Name: name}] = value
}

// Get returns the fixture or a *MissingError.
func (s *Store) Get(kind Kind, name string) (any, error) {
	v, ok := s.entries[Ref{Kind: kind, Name: name}]
	if !ok {
		return nil, &MissingError{Kind: kind, Name: name}
	}
	return v, nil
}

// Has reports whether the fixture exists.
func (s *Store) Has(kind Kind, name string) bool {
	_, ok := s.entries[Ref{Kind: kind, Name: name}]
	return ok
}

// Delete removes a fixture. Deleting an absent fixture is a no-op.
func (s *Store) Delete(kind Kind, name string) {
	delete(s.entries, Ref{Kind: kind, Name: name})
}

// PutActor records an actor under KindActor using its Name.
// A later PutActor for the same name replaces the token (login refresh).
func (s *Store) PutActor(a Actor) {
	s.Put(KindActor, a.Name, a)
}

// Actor returns the named actor.
func (s *Store) Actor(name string) (Actor, error) {
	v, err := s.Get(KindActor, name)
	if err != nil {
		return Actor{}, err
	}
	a, ok := v.(Actor)
	if !ok {
		return Actor{}, fmt.Errorf("fixture %s:%s holds %T, not an actor", KindActor, name, v)
	}
	return a, nil
}

// AuthedActor returns the named actor only if it holds a token.
func (s *Store) AuthedActor(name string) (Actor, error) {
	a, err := s.Actor(name)
	if err != nil {
		return Actor{}, err
	}
	if a.Token == "" {
		return Actor{}, &MissingError{Kind: KindActor, Name: name + " (token)"}
	}
	return a, nil
}

// PutID records a string id such as a story or event id.
func (s *Store) PutID(kind Kind, name, id string) {
	s.Put(kind, name, id)
}

// ID returns a string fixture.
func (s *Store) ID(kind Kind, name string) (string, error) {
	v, err := s.Get(kind, name)
	if err != nil {
		return "", err
	}
	id, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("fixture %s:%s holds %T, not a string", kind, name, v)
	}
	return id, nil
}

// Entry is one line of a Snapshot.
type Entry struct {
	Ref   Ref
	Value string
}

// Snapshot lists all fixtures sorted by kind then name. Tokens and
// passwords are redacted.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for ref, v := range s.entries {
		out = append(out, Entry{Ref: ref, Value: describe(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ref.Kind != out[j].Ref.Kind {
			return out[i].Ref.Kind < out[j].Ref.Kind
		}
		return out[i].Ref.Name < out[j].Ref.Name
	})
	return out
}

// Len returns the number of fixtures.
func (s *Store) Len() int {
	return len(s.entries)
}

func describe(v any) string {
	switch x := v.(type) {
	case Actor:
		token := "none"
		if x.Token != "" {
			token = "set"
		}
		return fmt.Sprintf("role=%s email=%s user_id=%s token=%s", x.Role, x.Email, x.UserID, token)
	case string:
		if len(x) <= 48 {
			return x
		}
		n := 48
		for n > 0 && !utf8.RuneStart(x[n]) {
			n--
		}
		return x[:n] + "..."
	default:
		return fmt.Sprintf("%v", x)
	}
}
