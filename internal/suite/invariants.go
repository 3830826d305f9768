package suite

import (
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
	"github.com/roach88/sagacheck/internal/harness"
)

// Invariants checks properties that must hold whatever the data: toggles
// return to where they started, only permitted roles create events,
// capacity is never exceeded and only owners (or admins) delete.
func Invariants() harness.Suite {
	return harness.Suite{
		Name:        "invariants",
		Description: "toggle, authorization, capacity and ownership properties",
		Groups: []harness.Group{
			{Name: "Setup", Steps: []harness.Step{
				signup("Signup Owner", profile{actor: "owner", role: fixture.RoleRider, name: "Story Owner"}),
				signup("Signup Other Rider", profile{actor: "other", role: fixture.RoleRider, name: "Other Rider"}),
				signup("Signup Club", profile{actor: "club", role: fixture.RoleClub, name: "Invariant Club"}),
				signup("Signup Creator", profile{actor: "creator", role: fixture.RoleCreator, name: "Invariant Creator"}),
				signup("Signup Admin", profile{actor: "admin", role: fixture.RoleAdmin, name: "Invariant Admin"}),
			}},
			invariantToggles(),
			invariantAuthorization(),
			invariantCapacity(),
			invariantOwnership(),
		},
	}
}

func invariantToggles() harness.Group {
	return harness.Group{Name: "Toggle Round Trips", Steps: []harness.Step{
		newStep("Toggle Story Created",
			post("/stories", "owner", storyBody("Toggle Target", "Liked and unliked", "Pune")),
			okWith(expect.ListLen("likes", 0)), critical,
			records(fixture.KindStory, "toggle", "id")),
		newStep("Like Adds Liker",
			post("/stories/{story:toggle}/like", "other", nil),
			okWith(expect.ListLen("likes", 1)), critical,
			against(userRef("other"), func(id string) expect.Predicate { return expect.ListContains("likes", id) })),
		newStep("Second Like Restores Likes",
			post("/stories/{story:toggle}/like", "other", nil),
			okWith(expect.ListLen("likes", 0)), critical),
		newStep("Toggle Event Created",
			post("/events", "admin", eventBody("Toggle Ride", "Joined and left", "Pune", "ride", 0, 21)),
			okWith(expect.ListLen("rsvps", 0)), critical,
			records(fixture.KindEvent, "toggle", "id")),
		newStep("RSVP Adds Attendee",
			post("/events/{event:toggle}/rsvp", "other", nil),
			okWith(expect.ListLen("rsvps", 1)), critical,
			against(userRef("other"), func(id string) expect.Predicate { return expect.ListContains("rsvps", id) })),
		newStep("Second RSVP Restores Attendees",
			post("/events/{event:toggle}/rsvp", "other", nil),
			okWith(expect.ListLen("rsvps", 0)), critical),
	}}
}

func authorizationProbe(role string) bodyFunc {
	return eventBody("Authorization Probe ("+role+")", "Created only where the role may create events", "Nashik", "meetup", 0, 28)
}

func invariantAuthorization() harness.Group {
	return harness.Group{Name: "Event Authorization", Steps: []harness.Step{
		newStep("Anonymous Event Creation Rejected",
			post("/events", "", authorizationProbe("anonymous")),
			isUnauthorized, critical),
		newStep("Rider Event Creation Rejected",
			post("/events", "other", authorizationProbe("rider")),
			isForbidden, critical),
		newStep("Club Event Creation Policy",
			post("/events", "club", authorizationProbe("club")),
			isOKOrDenied, unresolved),
		newStep("Creator Event Creation Policy",
			post("/events", "creator", authorizationProbe("creator")),
			isOKOrDenied, unresolved),
		newStep("Admin Event Creation Allowed",
			post("/events", "admin", authorizationProbe("admin")),
			okWith(expect.BodyHasFields("id", "creatorId")), critical),
	}}
}

func invariantCapacity() harness.Group {
	return harness.Group{Name: "Capacity", Steps: []harness.Step{
		newStep("Capacity Event Created",
			post("/events", "admin", eventBody("Capacity Probe", "Exactly one seat", "Satara", "ride", 1, 35)),
			okWith(expect.FieldEquals("maxAttendees", 1)), critical,
			records(fixture.KindEvent, "capacity", "id")),
		newStep("Seat Taken",
			post("/events/{event:capacity}/rsvp", "owner", nil),
			okWith(expect.ListLen("rsvps", 1)), critical),
		newStep("Full Event Rejects RSVP",
			post("/events/{event:capacity}/rsvp", "other", nil),
			expect.All(isBadRequest, expect.ErrorMessageContains("full")), critical),
		newStep("Seat Released",
			post("/events/{event:capacity}/rsvp", "owner", nil),
			okWith(expect.ListLen("rsvps", 0)), critical),
		newStep("Released Seat Can Be Taken",
			post("/events/{event:capacity}/rsvp", "other", nil),
			okWith(expect.ListLen("rsvps", 1)), critical,
			against(userRef("other"), func(id string) expect.Predicate { return expect.ListContains("rsvps", id) })),
	}}
}

func invariantOwnership() harness.Group {
	return harness.Group{Name: "Ownership", Steps: []harness.Step{
		newStep("Owned Story Created",
			post("/stories", "owner", storyBody("Owned Story", "Only I may delete this", "Kolhapur")),
			isOK, critical,
			records(fixture.KindStory, "owned", "id")),
		newStep("Other Rider Cannot Delete",
			del("/stories/{story:owned}", "other"),
			isForbidden, critical),
		newStep("Story Survives Rejected Delete",
			get("/stories/{story:owned}", ""),
			isOK, critical),
		newStep("Owner Deletes Story",
			del("/stories/{story:owned}", "owner"),
			isOK, critical),
		newStep("Deleted Story Not Found",
			get("/stories/{story:owned}", ""),
			isNotFound, critical),
	}}
}
