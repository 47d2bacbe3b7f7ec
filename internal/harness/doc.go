// Package harness runs declarative ingestion scenarios end to end.
//
// A scenario declares a set of stub units, runs them through the real
// pipeline (registry, loader, orchestrator, normalizer, store) against a
// fresh SQLite database, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_id: run-fixed            # optional, default test-run-0001
//	timeout: 100ms               # per-unit deadline, default 250ms
//	truncate: true               # default true
//	simulate: false
//	manifest_extra:              # extra manifest lines, e.g. invalid ones
//	  - missing.go
//	seed:                        # records committed before the run
//	  - {type: foodbank, id: old, name: Old}
//	units:
//	  - name: good
//	    records:
//	      - {type: foodbank, id: x42, name: Acme}
//	      - "not a mapping"
//	  - name: slow
//	    sleep: 10s
//	  - name: failing
//	    error: "upstream returned 503"
//	expect:
//	  exit_code: 0
//	  persisted: {foodbank: 1}
//	  units: {ok: 1, timeout: 1, runtime_error: 1}
//	  dropped: 1
//	assertions:
//	  - type: row_count
//	    table: foodbanks
//	    count: 1
//	  - type: final_state
//	    table: foodbanks
//	    where: {id: "foodbank:x42"}
//	    expect: {name: Acme}
//	  - type: unit_status
//	    unit: slow
//	    status: timeout
//
// # Unit Behaviors
//
// Each unit sets exactly one behavior:
//
//   - records: returns the list as its output (non-mapping elements are kept,
//     so they exercise element validation)
//   - output: returns the value as-is (a non-sequence exercises whole-output
//     rejection)
//   - sleep: blocks for the duration, returning early when its context ends
//     unless ignore_context is set
//   - error: returns an error with the message
//   - panic: panics with the message
//   - script: Go source of a script unit, loaded through the interpreter
//
// records and output may be combined with deferred: true to deliver the
// output through a channel.
//
// # Deterministic Testing
//
// The harness fixes the clock (testutil.FixedClock) and the run id
// (testutil.FixedRunIDGenerator), so persisted rows and golden snapshots are
// byte-stable. Golden snapshots live in testdata/golden and are compared with
// goldie.
package harness
