// Package engine runs the delivery pipeline around the ordering queue.
//
// ARCHITECTURE:
//
// Single-Writer Run Loop:
// A Runner owns one queue.ColorQueue and processes every event in a single
// goroutine. This ensures:
//   - No locking inside the queue
//   - Batches leave in the order the queue released them
//   - The delivered clock only ever grows
//
// Event Flow:
//  1. Init and Submit enqueue events on a bounded inbox (producers block
//     while it is full)
//  2. Run dequeues in FIFO order; commits before init are buffered
//  3. Each commit is classified, turned into a DeliveryUnit and added
//  4. Units that became deliverable go to the bounded outbox
//  5. A Deliverer goroutine numbers and flattens them into ir.Batch,
//     hands them to a Sink and checkpoints the delivered clock
//
// Failure Policy:
//   - Malformed events are logged and skipped
//   - An invariant violation stops the run; Run returns the wrapped
//     *queue.InvariantError
//   - A sink failure stops the Deliverer, which cancels the Runner
//   - A missing dependency is not an error: units stay pending and show up
//     in Runner.Pending()
package engine
