package suite

import (
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
	"github.com/roach88/sagacheck/internal/harness"
)

// Admin is the admin-readiness flow: the moderation and event powers an
// administrator needs before the platform opens, and the blocks that keep
// riders out of them. Run it with a delay between steps (the readiness
// check used half a second) when the target rate-limits.
func Admin() harness.Suite {
	return harness.Suite{
		Name:        "admin",
		Description: "admin readiness: events, moderation, stats",
		Groups: []harness.Group{
			{Name: "Setup", Steps: []harness.Step{
				signup("Admin Signup", profile{
					actor: "admin", role: fixture.RoleAdmin, name: "Test Admin",
					bio: "Platform administrator for testing",
				}),
				signup("Rider Signup", profile{
					actor: "rider", role: fixture.RoleRider, name: "Test Rider",
					bio: "Motorcycle enthusiast",
					extra: map[string]any{"bikeInfo": map[string]any{
						"brand": "Royal Enfield", "model": "Classic 350", "year": 2023,
					}},
				}),
			}},
			{Name: "Event Management", Steps: []harness.Step{
				newStep("Admin Event Creation",
					post("/events", "admin", withField(eventBody("Mumbai Coastal Ride",
						"Join us for a scenic coastal ride from Mumbai to Alibaug",
						"Marine Drive, Mumbai", "ride", 25, 7),
						"imageUrl", "https://example.com/coastal-ride.jpg")),
					okWith(expect.BodyHasFields("id", "title", "description", "date", "location", "eventType")), critical,
					against(userRef("admin"), func(id string) expect.Predicate { return expect.FieldEquals("creatorId", id) }),
					records(fixture.KindEvent, "coastal", "id")),
				newStep("Rider Event Creation Block",
					post("/events", "rider", eventBody("Unauthorized Event",
						"This should fail", "Test Location", "ride", 0, 7)),
					expect.All(isForbidden, expect.ErrorMessageContains("admin")), critical),
			}},
			{Name: "Content Moderation", Steps: []harness.Step{
				newStep("Story Creation",
					post("/stories", "rider", storyBody("My Royal Enfield Adventure",
						"Just completed an amazing ride through the Western Ghats!", "Western Ghats, Maharashtra")),
					okWith(expect.BodyHasFields("id")),
					against(userRef("rider"), func(id string) expect.Predicate { return expect.FieldEquals("userId", id) }),
					records(fixture.KindStory, "adventure", "id")),
				newStep("Admin Delete Story",
					del("/stories/{story:adventure}", "admin"),
					okWith(expect.FieldContains("message", "deleted")), critical),
				newStep("Admin Delete Event",
					del("/events/{event:coastal}", "admin"),
					okWith(expect.FieldContains("message", "deleted")), critical),
			}},
			{Name: "Admin Stats", Steps: []harness.Step{
				newStep("Admin Stats Access",
					get("/admin/stats", "admin"),
					okWith(expect.BodyHasFields("totalUsers", "totalStories", "totalEvents", "usersByRole")), critical),
				newStep("Rider Stats Block",
					get("/admin/stats", "rider"),
					isUnauthorized),
			}},
			{Name: "Engagement", Steps: []harness.Step{
				newStep("RSVP Test Event Creation",
					post("/events", "admin", eventBody("RSVP Test Event",
						"Test event for RSVP functionality", "Test Location", "ride", 5, 14)),
					okWith(expect.BodyHasFields("id")),
					records(fixture.KindEvent, "rsvp", "id")),
				newStep("RSVP Functionality",
					post("/events/{event:rsvp}/rsvp", "rider", nil),
					isOK,
					against(userRef("rider"), func(id string) expect.Predicate { return expect.ListContains("rsvps", id) })),
				newStep("Like Test Story Creation",
					post("/stories", "rider", storyBody("Like Test Story",
						"Testing like functionality", "Test Location")),
					okWith(expect.BodyHasFields("id")),
					records(fixture.KindStory, "like", "id")),
				newStep("Like Functionality",
					post("/stories/{story:like}/like", "rider", nil),
					isOK,
					against(userRef("rider"), func(id string) expect.Predicate { return expect.ListContains("likes", id) })),
			}},
		},
	}
}
