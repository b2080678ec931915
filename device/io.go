package device

import "github.com/ardnew/intstack/pkg"

// IO is a caller-owned buffer on the far side of the device boundary.
type IO interface {
	// NumBytes returns the caller's buffer length.
	NumBytes() int

	// CopyIn copies up to len(dst) bytes from the caller's buffer.
	CopyIn(dst []byte) (int, error)

	// CopyOut copies src into the caller's buffer.
	CopyOut(src []byte) (int, error)
}

// BytesIO is an IO over an in-memory slice.
type BytesIO []byte

// NumBytes implements IO.
func (b BytesIO) NumBytes() int { return len(b) }

// CopyIn implements IO.
func (b BytesIO) CopyIn(dst []byte) (int, error) {
	return copy(dst, b), nil
}

// CopyOut implements IO.
func (b BytesIO) CopyOut(src []byte) (int, error) {
	if len(src) > len(b) {
		return 0, pkg.ErrFault
	}
	return copy(b, src), nil
}

// copyIn reads exactly len(dst) bytes, reporting short or failed copies
// as ErrFault.
func copyIn(io IO, dst []byte) error {
	n, err := io.CopyIn(dst)
	if err != nil || n != len(dst) {
		return pkg.ErrFault
	}
	return nil
}

func copyOut(io IO, src []byte) error {
	n, err := io.CopyOut(src)
	if err != nil || n != len(src) {
		return pkg.ErrFault
	}
	return nil
}
