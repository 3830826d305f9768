// Package harness runs declarative conformance suites against a live
// platform API.
//
// A Suite is an ordered list of Groups, each an ordered list of Steps. A
// Step describes one request: how to build it from fixtures recorded by
// earlier steps, the predicate its response must satisfy, and what it
// records for later steps. The Runner executes steps strictly in order,
// one at a time, and produces exactly one Result per executed step.
//
// # Failure kinds
//
// A failed Result carries one of three kinds:
//
//   - transport_error: the request never produced an HTTP response
//   - assertion_failure: a response arrived but the predicate rejected it
//   - precondition_missing: a fixture the step needs was never recorded,
//     or was produced by a load-bearing step that failed; no request is sent
//
// A failing step never stops the run. Only critical steps count towards
// Summary.CriticalFailures, which drives the process exit code.
//
// # Cancellation
//
// The run context is checked before every step. When it is cancelled the
// run completes early with Interrupted set; the Results recorded so far are
// complete and can be reported as usual.
//
// # Determinism
//
// Time and run ids are injected (Clock, IDGenerator) so tests can render
// byte-identical reports for golden comparison.
package harness
