// Package device adapts the stack to read, write and ioctl calls over
// caller-supplied buffers.
//
// Each call moves exactly one 4-byte little-endian element:
//
//   - Read pops the top element into the caller's buffer and returns 4, or
//     returns 0 when the stack is empty.
//   - Write pushes the first 4 bytes of the caller's buffer and returns 4.
//   - Ioctl handles [IoctlSetSize] and [IoctlGetCount].
//
// Buffers are described by the [IO] interface so the same adapter serves
// in-process callers and the socket transport. Bytes are never copied while
// the stack lock is held.
//
// Errors are the sentinels from package pkg and map to the errno values a
// character device would return via [pkg.Errno].
package device
