package suite

import (
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
	"github.com/roach88/sagacheck/internal/harness"
)

const commentText = "Amazing journey! I've always wanted to ride to Ladakh. Any tips for first-timers?"

// Platform is the full backend flow: authentication, stories, events,
// profiles and admin functions, in the order a new community would use
// them.
func Platform() harness.Suite {
	return harness.Suite{
		Name:        "platform",
		Description: "full backend flow across all roles",
		Groups: []harness.Group{
			platformAuth(),
			platformStories(),
			platformEvents(),
			platformProfiles(),
			platformAdmin(),
		},
	}
}

func platformAuth() harness.Group {
	return harness.Group{Name: "Authentication", Steps: []harness.Step{
		signup("Signup Rider", profile{
			actor: "rider", role: fixture.RoleRider, name: "Rajesh Kumar",
			bio: "Passionate rider from Mumbai",
			extra: map[string]any{"bikeInfo": map[string]any{
				"brand": "Royal Enfield", "model": "Himalayan 450", "year": 2024,
			}},
		}, expect.FieldEquals("user.bikeInfo.brand", "Royal Enfield")),
		signup("Signup Club", profile{
			actor: "club", role: fixture.RoleClub, name: "Mumbai Riders Club",
			bio: "Premier motorcycle club in Mumbai",
			extra: map[string]any{"clubInfo": map[string]any{
				"location": "Mumbai, Maharashtra", "memberCount": 150, "established": 2015,
			}},
		}, expect.FieldEquals("user.clubInfo.location", "Mumbai, Maharashtra")),
		signup("Signup Creator", profile{
			actor: "creator", role: fixture.RoleCreator, name: "Priya Sharma",
			bio: "Motorcycle content creator and vlogger",
		}),
		signup("Signup Admin", profile{
			actor: "admin", role: fixture.RoleAdmin, name: "Admin User",
			bio: "Platform administrator",
		}),
		login("Login Existing User", "rider", critical),
		newStep("Login Invalid Credentials",
			post("/auth/login", "", wrongPassword("rider")),
			isUnauthorized, critical, needs(actorRef("rider"))),
		newStep("Get Current User",
			get("/auth/me", "rider"),
			okWith(expect.BodyHasFields("id", "email", "role")), critical,
			against(userRef("rider"), func(id string) expect.Predicate { return expect.FieldEquals("id", id) })),
		newStep("Unauthorized Access Blocked",
			get("/auth/me", ""),
			isUnauthorized, critical),
	}}
}

// storyWithMedia attaches the uploaded image when the upload step
// produced one; the story itself does not depend on it.
func storyWithMedia(env *harness.Env) (any, error) {
	media := []string{"https://images.example.com/ladakh-pass.jpg"}
	if u, err := env.Fixtures.ID(fixture.KindMedia, "image"); err == nil {
		media = append([]string{u}, media...)
	}
	return map[string]any{
		"title":     "Epic Ride to Leh-Ladakh",
		"content":   "Just completed an amazing 10-day journey through the Himalayas. The roads were challenging but the views were absolutely breathtaking!",
		"location":  "Leh, Ladakh",
		"mediaUrls": media,
	}, nil
}

func platformStories() harness.Group {
	return harness.Group{Name: "Story Creation", Steps: []harness.Step{
		newStep("File Upload",
			upload("/upload", "rider", pixelUpload()),
			okWith(expect.FieldHasPrefix("url", "data:")), critical,
			records(fixture.KindMedia, "image", "url")),
		newStep("Create Story With Media",
			post("/stories", "rider", storyWithMedia),
			okWith(expect.BodyHasFields("id", "userId", "mediaUrls"), expect.FieldEquals("location", "Leh, Ladakh")), critical,
			against(userRef("rider"), func(id string) expect.Predicate { return expect.FieldEquals("userId", id) }),
			records(fixture.KindStory, "media", "id")),
		newStep("Create Simple Story",
			post("/stories", "creator", storyBody("Weekend Ride to Lonavala",
				"Quick weekend getaway to Lonavala. Perfect weather and smooth roads!", "Lonavala, Maharashtra")),
			okWith(expect.BodyHasFields("id", "userId")), critical,
			records(fixture.KindStory, "simple", "id")),
		newStep("List All Stories",
			get("/stories", ""),
			okWith(expect.IsList()), critical),
		newStep("Get Single Story",
			get("/stories/{story:media}", ""),
			isOK, critical,
			against(storyRef("media"), func(id string) expect.Predicate { return expect.FieldEquals("id", id) })),
		newStep("Like Story",
			post("/stories/{story:media}/like", "club", nil),
			isOK, critical,
			against(userRef("club"), func(id string) expect.Predicate { return expect.ListContains("likes", id) })),
		newStep("Unlike Story",
			post("/stories/{story:media}/like", "club", nil),
			isOK, critical,
			against(userRef("club"), func(id string) expect.Predicate { return expect.ListNotContains("likes", id) })),
		newStep("Add Comment",
			post("/stories/{story:media}/comment", "creator", fixed(map[string]any{"text": commentText})),
			okWith(expect.ListLen("comments", 1), expect.FieldEquals("comments[0].text", commentText)), critical,
			against(userRef("creator"), func(id string) expect.Predicate { return expect.FieldEquals("comments[0].userId", id) })),
	}}
}

func platformEvents() harness.Group {
	return harness.Group{Name: "Event System", Steps: []harness.Step{
		newStep("Create Event As Admin",
			post("/events", "admin", eventBody("Mumbai Coastal Ride 2024",
				"Join us for a scenic coastal ride along the Mumbai coastline", "Marine Drive, Mumbai", "ride", 50, 30)),
			okWith(expect.BodyHasFields("id", "creatorId"), expect.FieldEquals("maxAttendees", 50)), critical,
			against(userRef("admin"), func(id string) expect.Predicate { return expect.FieldEquals("creatorId", id) }),
			records(fixture.KindEvent, "admin", "id")),
		newStep("Create Event As Club",
			post("/events", "club", eventBody("Club Event Test",
				"Accepted or refused depending on the event creation policy", "Test Location", "ride", 0, 14)),
			isOKOrDenied, unresolved),
		newStep("Create Event As Creator",
			post("/events", "creator", eventBody("Motorcycle Photography Workshop",
				"Learn how to capture stunning motorcycle photos. Bring your camera and bike!", "Pune, Maharashtra", "meetup", 20, 45)),
			isOKOrDenied, unresolved),
		newStep("Create Event As Rider Blocked",
			post("/events", "rider", eventBody("Test Event", "This should not be created", "Test Location", "ride", 0, 14)),
			isForbidden, critical),
		newStep("List All Events",
			get("/events", ""),
			okWith(expect.IsList()), critical),
		newStep("RSVP To Event",
			post("/events/{event:admin}/rsvp", "rider", nil),
			isOK, critical,
			against(userRef("rider"), func(id string) expect.Predicate { return expect.ListContains("rsvps", id) })),
		newStep("RSVP Toggle",
			post("/events/{event:admin}/rsvp", "rider", nil),
			isOK, critical,
			against(userRef("rider"), func(id string) expect.Predicate { return expect.ListNotContains("rsvps", id) })),
		newStep("Create Limited Event",
			post("/events", "admin", eventBody("Small Group Ride", "Limited to 1 person only", "Test Location", "ride", 1, 7)),
			okWith(expect.FieldEquals("maxAttendees", 1)), critical,
			records(fixture.KindEvent, "capacity", "id")),
		newStep("Limited Event First RSVP",
			post("/events/{event:capacity}/rsvp", "rider", nil),
			okWith(expect.ListLen("rsvps", 1)), critical),
		newStep("Max Attendees Limit",
			post("/events/{event:capacity}/rsvp", "creator", nil),
			isBadRequest, critical),
		newStep("Get Event By ID",
			get("/events/{event:admin}", ""),
			okWith(expect.BodyHasFields("rsvpCount", "creator")), critical,
			against(eventRef("admin"), func(id string) expect.Predicate { return expect.FieldEquals("id", id) })),
	}}
}

func platformProfiles() harness.Group {
	return harness.Group{Name: "User Profile", Steps: []harness.Step{
		newStep("Get User Profile",
			get("/users/{user:rider}", ""),
			okWith(expect.BodyHasFields("bikeInfo.brand")),
			against(userRef("rider"), func(id string) expect.Predicate { return expect.FieldEquals("id", id) })),
		newStep("Update Own Profile",
			put("/users/{user:rider}", "rider", fixed(map[string]any{
				"name": "Rajesh Kumar (Updated)",
				"bio":  "Passionate rider from Mumbai - 10 years of riding experience",
				"bikeInfo": map[string]any{
					"brand": "Royal Enfield", "model": "Himalayan 450", "year": 2024,
					"modifications": "Crash guards, panniers",
				},
			})),
			okWith(expect.FieldEquals("name", "Rajesh Kumar (Updated)"))),
		newStep("Update Other Profile Blocked",
			put("/users/{user:club}", "rider", fixed(map[string]any{"name": "Hacked Name"})),
			isForbidden, critical),
	}}
}

func platformAdmin() harness.Group {
	return harness.Group{Name: "Admin Functions", Steps: []harness.Step{
		newStep("Admin Stats",
			get("/admin/stats", "admin"),
			okWith(expect.BodyHasFields("totalUsers", "totalStories", "totalEvents", "usersByRole"))),
		newStep("Admin Stats Unauthorized",
			get("/admin/stats", "rider"),
			isUnauthorized, critical),
		newStep("Delete Own Story",
			del("/stories/{story:media}", "rider"),
			isOK),
		newStep("Delete Other Story Blocked",
			del("/stories/{story:simple}", "rider"),
			isForbidden, critical),
		newStep("Admin Delete Any Story",
			del("/stories/{story:simple}", "admin"),
			isOK),
		newStep("Delete Own Event",
			del("/events/{event:admin}", "admin"),
			isOK),
	}}
}
