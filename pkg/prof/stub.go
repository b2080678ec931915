//go:build !profile

package prof

import "net/http"

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Register is a no-op without the "profile" build tag.
func Register(*http.ServeMux) {}

// StartCPU is a no-op without the "profile" build tag.
func StartCPU(string) (stop func() error, err error) {
	return func() error { return nil }, nil
}
