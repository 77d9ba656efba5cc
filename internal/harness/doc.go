// Package harness runs declarative replay and alignment scenarios.
//
// A scenario describes input streams inline, a sequence of replay step
// targets, an optional alignment, and assertions over what happened. Run
// drives the real engine and aligner; nothing is simulated. The resulting
// trace is deterministic, so it can be compared byte for byte against a
// golden file.
//
// # Scenario Format
//
//	name: replay_interleave
//	description: "Two streams merge by timestamp"
//	streams:
//	  - id: A
//	    t: [0, 1, 2]
//	    values: [0, 1, 2]
//	  - id: B
//	    t: [0.5, 1.5]
//	    v: [[0, 0], [1, 1]]      # multi-channel samples
//	steps: [2.0]
//	resume_after: 1              # optional: checkpoint and resume
//	align:
//	  source: B
//	  reference: A               # or queries: [0.1, 0.2]
//	  policy: clamp
//	  max_gap: 0
//	assertions:
//	  - type: emission_order
//	    emissions: ["A[0]", "B[0]", "A[1]"]
//	  - type: emission_count
//	    stream: A
//	    count: 3
//	  - type: aligned_values
//	    values: [0, 0, 0.5]
//	    tolerance: 1e-9
//	  - type: expect_error
//	    code: NON_MONOTONIC_ADVANCE
//	    stage: step
//	  - type: drained
//
// # Trace
//
// Trace events are numbered in the order they occur:
//
//   - step: a replay step target and how many samples it released
//   - emission: one released sample, labelled stream[index]
//   - aligned: one output sample of the alignment
//   - error: a rejected operation, with its stage and error code
//
// Errors do not abort a scenario. A failed step leaves the replayer
// unchanged and later steps still run. Any error not matched by an
// expect_error assertion fails the scenario.
//
// # Golden Files
//
// RunWithGolden stores traces under testdata/scenarios/golden/{name}.golden as
// canonical JSON. Regenerate with:
//
//	go test ./internal/harness -update
package harness
