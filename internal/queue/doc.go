// Package queue implements the delivery-ordering core of causeway.
//
// Commits arrive unordered. Each carries a conflict clock naming, per
// replica, the highest committed sequence number that conflicts with it.
// The queue turns that stream into delivery batches such that:
//   - if A's dependency clock covers B, B is delivered no later than A
//   - mutually dependent operations are delivered together as one batch,
//     ordered internally by dot
//   - independent operations are delivered as soon as they arrive
//
// ARCHITECTURE:
//
// DeliveryUnit groups one or more operations with their aggregate
// dependency clock. DependencyQueue keeps pending units in a list ordered
// so that every unit sits after the units it depends on. Adding a unit
// finds the earliest unit that depends on it (X) and the latest unit it
// depends on (Y). If X lies at or before Y the new unit closes a cycle and
// X..Y are merged with it into one unit.
//
// After every insertion the head is tested: it is delivered only when the
// delivered clock plus its own dots matches its dependency clock EXACTLY.
// A superset means some operation it conflicts with was delivered first,
// and a subset means a dependency is still missing.
//
// ColorQueue splits traffic into a conflicting and a non-conflicting queue
// sharing one delivered clock. FormBatches is an alternate batch former
// built on strongly connected components, used for offline reconciliation.
//
// CONCURRENCY:
//
// Nothing in this package locks. Exactly one goroutine drives a queue
// instance; see engine.Runner.
package queue
