// Package stack implements the bounded integer stack behind the device.
//
// The package has two layers:
//
//   - [Store] owns the buffer, depth and capacity and implements push, pop,
//     resize and depth queries. It performs no locking.
//   - [Stack] is the access coordinator: it owns exactly one Store and
//     serializes every call with a reader/writer lock. Push, Pop and Resize
//     take exclusive access; Depth, Capacity and Snapshot take shared
//     access.
//
// # Semantics
//
// Push on a full stack fails with [pkg.ErrCapacityExceeded] and changes
// nothing. Pop on an empty stack is not an error: it reports ok == false.
// Resize reallocates the buffer to exactly the requested capacity and keeps
// the bottom min(depth, capacity) elements; shrinking below the current
// depth silently discards the top elements. A failed allocation leaves the
// store exactly as it was.
//
// # Fairness
//
// [sync.RWMutex] blocks new readers once a writer is waiting, so a steady
// stream of depth queries cannot starve push, pop or resize.
package stack
