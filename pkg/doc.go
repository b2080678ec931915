// Package pkg provides shared utilities for the intstack device.
//
// This package contains common functionality used across the stack engine,
// the interface adapter, the lifecycle controller and the daemon:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for stack, interface and lifecycle failures
//   - Conversion between sentinel errors and errno values at the boundary
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentLifecycle, "interface published", "path", path)
//
// # Errors
//
// Failures are reported as sentinel values:
//
//	if errors.Is(err, pkg.ErrCapacityExceeded) {
//	    // stack is full
//	}
//
// [Errno] and [FromErrno] translate them to and from the errno a
// character device would return, so a client on the far side of the socket
// sees the same sentinels the device produced.
package pkg
