// Package harness runs delivery-ordering scenarios against the queue.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: cycle_merge
//	description: "What this scenario validates"
//	partitioned: false          # route non_conflicting_tags to the fast path
//	committed:                  # snapshot delivery starts from
//	  - replica: 0
//	    watermark: 2
//	    holes: [1]
//	commits:                    # arrival order
//	  - dot: {replica: 0, seq: 3}
//	    conf: {0: 3, 1: 1}
//	    tag: write
//	    payload: "x"
//	    expect:                 # batches this add releases
//	      - [{replica: 0, seq: 3}]
//	assertions:
//	  - type: batches
//	    batches: [[{replica: 0, seq: 3}]]
//
// # Assertion Types
//
//   - batches: the delivered grouping, in any batch order
//   - delivered_order: the delivered batches, in delivery order
//   - pending: the number of queued units, optionally the exact queued dots
//   - merges: total cycle merges across both queues
//   - error: delivery stopped on an invariant error with the given code
//
// # Deterministic Testing
//
// Every run uses a fixed run ID, a fresh batch clock and a fresh in-memory
// delivery log, so traces are byte-identical across runs and can be
// compared against golden files.
//
// RunShuffled replays the same scenario under a seeded permutation of the
// commits. The delivered grouping must not depend on arrival order, so
// every assertion except delivered_order must still hold.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cycle_merge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Errors {
//	    log.Println(e)
//	}
package harness
