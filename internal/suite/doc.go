// Package suite defines the conformance suites sagacheck runs against the
// Moto Saga API.
//
// Suites are plain harness.Suite values built from declarative steps. A
// step names the actor whose token it sends, a path template whose
// {kind:name} placeholders are filled from fixtures recorded by earlier
// steps, a payload builder and an expectation. Referencing a placeholder
// or actor adds it to the step's preconditions, so a step whose inputs
// were never produced is reported as precondition_missing instead of being
// sent.
//
// Every actor signs up with a run-unique e-mail address, so suites can be
// repeated against the same service.
package suite
