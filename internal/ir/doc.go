// Package ir provides the foundational value types of causeway.
//
// This package contains identity, clock and record types only. All other
// internal packages import ir; ir imports nothing internal, which keeps it
// the bottom layer with no circular dependencies.
//
// Key design constraints:
//   - Dots are totally ordered (replica, then seq) so every tie-break is
//     deterministic
//   - Clocks only grow: AddDots and Merge never remove a sequence number
//   - Logical sequence numbers only, never wall-clock timestamps
//   - All JSON and YAML tags use snake_case
package ir
