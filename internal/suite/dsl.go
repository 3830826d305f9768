package suite

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/sagacheck/internal/apiclient"
	"github.com/roach88/sagacheck/internal/config"
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
	"github.com/roach88/sagacheck/internal/harness"
)

// pixelPNG is a 1x1 PNG used by upload steps.
var pixelPNG = mustDecode("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("suite: bad embedded image: %v", err))
	}
	return b
}

func actorRef(name string) fixture.Ref { return fixture.Ref{Kind: fixture.KindActor, Name: name} }
func userRef(name string) fixture.Ref  { return fixture.Ref{Kind: fixture.KindUser, Name: name} }
func storyRef(name string) fixture.Ref { return fixture.Ref{Kind: fixture.KindStory, Name: name} }
func eventRef(name string) fixture.Ref { return fixture.Ref{Kind: fixture.KindEvent, Name: name} }

// bodyFunc builds a JSON payload from fixtures.
type bodyFunc func(env *harness.Env) (any, error)

func fixed(v any) bodyFunc {
	return func(*harness.Env) (any, error) { return v, nil }
}

// req describes one request. Path may reference fixtures as {kind:name},
// e.g. "/stories/{story:media}/like"; {user:rider} is the rider's user id.
type req struct {
	method string
	path   string
	as     string // actor whose token is sent; empty is anonymous
	body   bodyFunc
	upload *apiclient.Multipart
}

func get(path, as string) req {
	return req{method: http.MethodGet, path: path, as: as}
}

func post(path, as string, body bodyFunc) req {
	return req{method: http.MethodPost, path: path, as: as, body: body}
}

func put(path, as string, body bodyFunc) req {
	return req{method: http.MethodPut, path: path, as: as, body: body}
}

func del(path, as string) req {
	return req{method: http.MethodDelete, path: path, as: as}
}

func upload(path, as string, file apiclient.Multipart) req {
	return req{method: http.MethodPost, path: path, as: as, upload: &file}
}

// requires lists the fixtures the request cannot be built without.
func (q req) requires() []fixture.Ref {
	var refs []fixture.Ref
	if q.as != "" {
		refs = append(refs, actorRef(q.as))
	}
	refs = append(refs, placeholders(q.path)...)
	return refs
}

func (q req) build(env *harness.Env) (harness.Call, error) {
	path, err := expandPath(env, q.path)
	if err != nil {
		return harness.Call{}, err
	}
	call := harness.Call{Method: q.method, Path: path, Request: apiclient.Request{Multipart: q.upload}}
	if q.as != "" {
		a, err := env.Fixtures.AuthedActor(q.as)
		if err != nil {
			return harness.Call{}, err
		}
		call.Request.Token = a.Token
	}
	if q.body != nil {
		v, err := q.body(env)
		if err != nil {
			return harness.Call{}, err
		}
		call.Request.JSON = v
	}
	return call, nil
}

// placeholders parses the {kind:name} references of a path template.
func placeholders(tmpl string) []fixture.Ref {
	var refs []fixture.Ref
	rest := tmpl
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			return refs
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return refs
		}
		if kind, name, ok := strings.Cut(rest[start+1:start+end], ":"); ok {
			refs = append(refs, fixture.Ref{Kind: fixture.Kind(kind), Name: name})
		}
		rest = rest[start+end+1:]
	}
}

// expandPath substitutes fixture ids into a path template.
func expandPath(env *harness.Env, tmpl string) (string, error) {
	out := tmpl
	for _, ref := range placeholders(tmpl) {
		id, err := env.Fixtures.ID(ref.Kind, ref.Name)
		if err != nil {
			return "", err
		}
		out = strings.Replace(out, "{"+ref.String()+"}", url.PathEscape(id), 1)
	}
	return out, nil
}

type option func(*harness.Step)

// critical marks a step whose failure fails the run.
func critical(s *harness.Step) { s.Critical = true }

// records stores the string at path under (kind, name) when the step
// passes. The step becomes load-bearing for that fixture.
func records(kind fixture.Kind, name, path string) option {
	return func(s *harness.Step) {
		s.LoadBearing = true
		s.Provides = append(s.Provides, fixture.Ref{Kind: kind, Name: name})
		s.Record = chain(s.Record, func(env *harness.Env, resp *apiclient.Response) error {
			v, ok := resp.String(path)
			if !ok {
				return fmt.Errorf("response has no %s", path)
			}
			env.Fixtures.PutID(kind, name, v)
			return nil
		})
	}
}

func chain(first, next func(*harness.Env, *apiclient.Response) error) func(*harness.Env, *apiclient.Response) error {
	if first == nil {
		return next
	}
	return func(env *harness.Env, resp *apiclient.Response) error {
		if err := first(env, resp); err != nil {
			return err
		}
		return next(env, resp)
	}
}

// needs adds preconditions the request itself does not mention.
func needs(refs ...fixture.Ref) option {
	return func(s *harness.Step) { s.Requires = append(s.Requires, refs...) }
}

// unresolved marks a step checking behaviour the platform has not settled:
// it accepts either outcome and says so in the report details.
func unresolved(s *harness.Step) {
	if s.Details == nil {
		s.Details = make(map[string]any)
	}
	s.Details["policy_unresolved"] = true
}

// against extends the step's expectation with one built from a recorded
// id, e.g. "likes contains the rider's user id".
func against(ref fixture.Ref, fn func(id string) expect.Predicate) option {
	return func(s *harness.Step) {
		base := s.Expect
		s.Requires = append(s.Requires, ref)
		s.ExpectFrom = func(env *harness.Env) (expect.Predicate, error) {
			id, err := env.Fixtures.ID(ref.Kind, ref.Name)
			if err != nil {
				return nil, err
			}
			if base == nil {
				return fn(id), nil
			}
			return expect.All(base, fn(id)), nil
		}
	}
}

func newStep(name string, q req, pred expect.Predicate, opts ...option) harness.Step {
	s := harness.Step{
		Name:     name,
		Requires: q.requires(),
		Build:    q.build,
		Expect:   pred,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func password(env *harness.Env) string {
	if env.Settings.Password != "" {
		return env.Settings.Password
	}
	return config.DefaultPassword
}

// profile is the signup payload of one actor.
type profile struct {
	actor string
	role  fixture.Role
	name  string
	bio   string
	extra map[string]any // bikeInfo, clubInfo
}

// signup registers an actor and records its token and user id. Signups are
// critical and load-bearing: nothing after them works without the actor.
func signup(stepName string, p profile, extra ...expect.Predicate) harness.Step {
	preds := append([]expect.Predicate{
		expect.StatusEquals(http.StatusOK),
		expect.BodyHasFields("token", "user.id"),
		expect.FieldEquals("user.role", string(p.role)),
	}, extra...)

	return harness.Step{
		Name:        stepName,
		Critical:    true,
		LoadBearing: true,
		Provides:    []fixture.Ref{actorRef(p.actor), userRef(p.actor)},
		Build: func(env *harness.Env) (harness.Call, error) {
			body := map[string]any{
				"email":    env.Email(p.actor),
				"password": password(env),
				"name":     p.name,
				"role":     string(p.role),
			}
			if p.bio != "" {
				body["bio"] = p.bio
			}
			for k, v := range p.extra {
				body[k] = v
			}
			return harness.Call{
				Method:  http.MethodPost,
				Path:    "/auth/signup",
				Request: apiclient.Request{JSON: body},
			}, nil
		},
		Expect: expect.All(preds...),
		Record: func(env *harness.Env, resp *apiclient.Response) error {
			token, _ := resp.String("token")
			id, _ := resp.String("user.id")
			env.Fixtures.PutActor(fixture.Actor{
				Name:     p.actor,
				Role:     p.role,
				Email:    env.Email(p.actor),
				Password: password(env),
				Token:    token,
				UserID:   id,
			})
			env.Fixtures.PutID(fixture.KindUser, p.actor, id)
			return nil
		},
	}
}

// login signs an existing actor in again and replaces its token.
func login(stepName, actor string, opts ...option) harness.Step {
	s := harness.Step{
		Name:     stepName,
		Requires: []fixture.Ref{actorRef(actor)},
		Build: func(env *harness.Env) (harness.Call, error) {
			a, err := env.Fixtures.Actor(actor)
			if err != nil {
				return harness.Call{}, err
			}
			return harness.Call{
				Method: http.MethodPost,
				Path:   "/auth/login",
				Request: apiclient.Request{JSON: map[string]any{
					"email":    a.Email,
					"password": a.Password,
				}},
			}, nil
		},
		ExpectFrom: func(env *harness.Env) (expect.Predicate, error) {
			a, err := env.Fixtures.Actor(actor)
			if err != nil {
				return nil, err
			}
			return expect.All(
				expect.StatusEquals(http.StatusOK),
				expect.BodyHasFields("token", "user.id"),
				expect.FieldEquals("user.email", a.Email),
			), nil
		},
		Record: func(env *harness.Env, resp *apiclient.Response) error {
			a, err := env.Fixtures.Actor(actor)
			if err != nil {
				return err
			}
			token, _ := resp.String("token")
			a.Token = token
			env.Fixtures.PutActor(a)
			return nil
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// wrongPassword posts an actor's e-mail with a password it never set.
func wrongPassword(actor string) bodyFunc {
	return func(env *harness.Env) (any, error) {
		a, err := env.Fixtures.Actor(actor)
		if err != nil {
			return nil, err
		}
		return map[string]any{"email": a.Email, "password": "Not" + a.Password}, nil
	}
}

// eventBody builds an event payload dated days from now.
func eventBody(title, description, location, eventType string, maxAttendees, days int) bodyFunc {
	return func(*harness.Env) (any, error) {
		return map[string]any{
			"title":        title,
			"description":  description,
			"date":         time.Now().UTC().AddDate(0, 0, days).Format(time.RFC3339),
			"location":     location,
			"eventType":    eventType,
			"maxAttendees": maxAttendees,
		}, nil
	}
}

// withField adds one key to a map payload.
func withField(body bodyFunc, key string, value any) bodyFunc {
	return func(env *harness.Env) (any, error) {
		v, err := body(env)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("payload is %T, not an object", v)
		}
		m[key] = value
		return m, nil
	}
}

func storyBody(title, content, location string) bodyFunc {
	return fixed(map[string]any{"title": title, "content": content, "location": location})
}

func pixelUpload() apiclient.Multipart {
	return apiclient.Multipart{FileName: "test_bike.png", ContentType: "image/png", Data: pixelPNG}
}

// Expectation shorthands.
var (
	isOK           = expect.StatusEquals(http.StatusOK)
	isBadRequest   = expect.StatusEquals(http.StatusBadRequest)
	isUnauthorized = expect.StatusEquals(http.StatusUnauthorized)
	isForbidden    = expect.StatusEquals(http.StatusForbidden)
	isNotFound     = expect.StatusEquals(http.StatusNotFound)
	isOKOrDenied   = expect.StatusIn(http.StatusOK, http.StatusForbidden)
)

func okWith(preds ...expect.Predicate) expect.Predicate {
	return expect.All(append([]expect.Predicate{isOK}, preds...)...)
}
