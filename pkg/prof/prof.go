//go:build profile

package prof

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	runtimepprof "runtime/pprof"
	"sync"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

// ErrCPUProfileActive indicates CPU profiling is already running.
var ErrCPUProfileActive = errors.New("cpu profile already active")

var (
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Register mounts the pprof handlers on mux.
func Register(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// StartCPU writes a CPU profile to path until stop is called.
func StartCPU(path string) (stop func() error, err error) {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if cpuActive {
		return nil, ErrCPUProfileActive
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}
	if err := runtimepprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	cpuActive = true

	var once sync.Once
	return func() error {
		var cerr error
		once.Do(func() {
			cpuMutex.Lock()
			defer cpuMutex.Unlock()
			runtimepprof.StopCPUProfile()
			cpuActive = false
			cerr = f.Close()
		})
		return cerr
	}, nil
}
