package fixture

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	s := New()
	s.PutID(KindStory, "main", "story-1")

	id, err := s.ID(KindStory, "main")
	require.NoError(t, err)
	assert.Equal(t, "story-1", id)
	assert.True(t, s.Has(KindStory, "main"))
}

func TestStore_KindsDoNotCollide(t *testing.T) {
	s := New()
	s.PutID(KindStory, "main", "story-1")
	s.PutID(KindEvent, "main", "event-1")

	story, err := s.ID(KindStory, "main")
	require.NoError(t, err)
	event, err := s.ID(KindEvent, "main")
	require.NoError(t, err)

	assert.Equal(t, "story-1", story)
	assert.Equal(t, "event-1", event)
	assert.Equal(t, 2, s.Len())
}

func TestStore_MissingFixture(t *testing.T) {
	s := New()

	_, err := s.ID(KindEvent, "capacity")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, KindEvent, missing.Kind)
	assert.Equal(t, "capacity", missing.Name)
	assert.Contains(t, err.Error(), "precondition not met")
}

func TestStore_ActorRefresh(t *testing.T) {
	s := New()
	s.PutActor(Actor{Name: "rider1", Role: RoleRider, Email: "r@x.test", Token: "t1", UserID: "u1"})
	s.PutActor(Actor{Name: "rider1", Role: RoleRider, Email: "r@x.test", Token: "t2", UserID: "u1"})

	a, err := s.Actor("rider1")
	require.NoError(t, err)
	assert.Equal(t, "t2", a.Token)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AuthedActorRequiresToken(t *testing.T) {
	s := New()
	s.PutActor(Actor{Name: "club1", Role: RoleClub})

	_, err := s.AuthedActor("club1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.AuthedActor("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WrongType(t *testing.T) {
	s := New()
	s.Put(KindActor, "odd", "not-an-actor")
	s.Put(KindStory, "odd", 42)

	_, err := s.Actor("odd")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = s.ID(KindStory, "odd")
	require.Error(t, err)
}

func TestStore_DeleteAndSnapshot(t *testing.T) {
	s := New()
	s.PutActor(Actor{Name: "admin", Role: RoleAdmin, Email: "a@x.test", Token: "secret", UserID: "u9"})
	s.PutID(KindStory, "b", "s2")
	s.PutID(KindStory, "a", "s1")
	s.PutID(KindEvent, "x", "e1")
	s.Delete(KindEvent, "x")
	s.Delete(KindEvent, "never")

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "actor:admin", snap[0].Ref.String())
	assert.Equal(t, "story:a", snap[1].Ref.String())
	assert.Equal(t, "story:b", snap[2].Ref.String())
	assert.NotContains(t, snap[0].Value, "secret")
	assert.Contains(t, snap[0].Value, "token=set")
}

func TestSnapshotCutsLongValuesOnRuneBoundary(t *testing.T) {
	s := New()
	s.PutID(KindStory, "long", "a"+strings.Repeat("é", 30))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, utf8.ValidString(snap[0].Value))
	assert.Equal(t, "a"+strings.Repeat("é", 23)+"...", snap[0].Value)
}
