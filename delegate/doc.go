// Package delegate owns conversation turn-taking.
//
// For each inbound user message the engine walks one turn through four
// phases: the coordinator agent is asked which specialists apply
// (classification), the reply is resolved to concrete agent profiles
// (selection), each selected specialist is invoked through the router
// (delegation), and the outputs are merged into one reply (aggregation).
// Finally the user message and the aggregate are appended to the session
// state exactly once each — for streamed delivery, only after the stream
// has been fully drained.
//
// Specialist selection is a swappable strategy: the Classifier interface
// decouples the heuristic from the turn state machine, so the default
// keyword table can be replaced by a learned or rule-based classifier
// without touching the engine.
//
// # Partial failure
//
// A failed specialist contributes a fixed placeholder section and the
// error is logged; the whole request fails only when every selected
// specialist fails, or when the failure is fatal to further admissions
// (quota exhaustion). In streaming mode the placeholder stands in only
// when a specialist fails before producing output; text already forwarded
// to the caller cannot be recalled, so a mid-stream failure leaves that
// specialist's partial section in the aggregate as delivered.
package delegate
