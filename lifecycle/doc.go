// Package lifecycle gates publication of the device interface on token
// presence.
//
// A [Controller] has two states. Attach publishes the interface through a
// [Publisher] and moves to StateAttached only if publishing succeeds.
// Detach retracts a published interface and always ends in StateDetached.
// Repeated events in the same direction are no-ops. Stack contents are not
// touched by either transition.
//
// [Run] drives a Controller from a hal.TokenHAL until its context is
// cancelled. The non-hotplug deployment runs it with a static HAL and
// FailFast set, so a failure to publish at startup is fatal.
package lifecycle
