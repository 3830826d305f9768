package suite

import (
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
	"github.com/roach88/sagacheck/internal/harness"
)

// Seed replays two concrete scenarios end to end: an admin removing a
// rider's story, and a single-seat event turning the second rider away.
func Seed() harness.Suite {
	return harness.Suite{
		Name:        "seed",
		Description: "concrete moderation and capacity scenarios",
		Groups: []harness.Group{
			{Name: "Setup", Steps: []harness.Step{
				signup("Signup Rider A", profile{actor: "rider_a", role: fixture.RoleRider, name: "Rider A"}),
				signup("Signup Admin B", profile{actor: "admin_b", role: fixture.RoleAdmin, name: "Admin B"}),
				signup("Signup Admin C", profile{actor: "admin_c", role: fixture.RoleAdmin, name: "Admin C"}),
				signup("Signup Rider D", profile{actor: "rider_d", role: fixture.RoleRider, name: "Rider D"}),
				signup("Signup Rider E", profile{actor: "rider_e", role: fixture.RoleRider, name: "Rider E"}),
			}},
			{Name: "Story Moderation", Steps: []harness.Step{
				newStep("Rider A Posts Weekend Ride",
					post("/stories", "rider_a", storyBody("Weekend Ride", "Sunday loop through the ghats", "Lonavala")),
					okWith(expect.FieldEquals("title", "Weekend Ride")), critical,
					against(userRef("rider_a"), func(id string) expect.Predicate { return expect.FieldEquals("userId", id) }),
					records(fixture.KindStory, "weekend", "id")),
				newStep("Admin B Deletes Weekend Ride",
					del("/stories/{story:weekend}", "admin_b"),
					okWith(expect.FieldContains("message", "deleted")), critical),
				newStep("Weekend Ride Is Gone",
					get("/stories/{story:weekend}", ""),
					isNotFound, critical),
			}},
			{Name: "Single Seat Event", Steps: []harness.Step{
				newStep("Admin C Creates Single Seat Event",
					post("/events", "admin_c", eventBody("Single Seat Ride", "One rider only", "Khandala", "ride", 1, 10)),
					okWith(expect.FieldEquals("maxAttendees", 1), expect.ListLen("rsvps", 0)), critical,
					records(fixture.KindEvent, "single", "id")),
				newStep("Rider D Takes The Seat",
					post("/events/{event:single}/rsvp", "rider_d", nil),
					okWith(expect.ListLen("rsvps", 1)), critical,
					against(userRef("rider_d"), func(id string) expect.Predicate { return expect.ListContains("rsvps", id) })),
				newStep("Rider E Is Turned Away",
					post("/events/{event:single}/rsvp", "rider_e", nil),
					expect.All(isBadRequest, expect.ErrorMessageContains("full")), critical),
			}},
		},
	}
}
