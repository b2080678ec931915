// Package hal defines the hardware abstraction that reports presence of
// the token gating the device interface.
//
// # Implementations
//
//   - hal/linux watches kernel uevents over netlink and scans sysfs at
//     startup.
//   - hal/fifo watches a directory for token files and is used in tests
//     and development.
//   - hal/static reports a token that is always present.
//
// A TokenHAL reports transitions, not levels: WaitForAttach returns once
// per arrival and WaitForDetach once per removal. Implementations never
// report two attaches without an intervening detach.
package hal
