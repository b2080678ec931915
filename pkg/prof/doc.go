// Package prof adds runtime profiling to intstackd.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/intstackd
//
// With the tag, [Register] mounts the [net/http/pprof] handlers under
// /debug/pprof/ on the metrics listener, and [StartCPU] records a CPU
// profile to a file until the returned stop function is called:
//
//	stop, err := prof.StartCPU("cpu.prof")
//	if err != nil {
//		return err
//	}
//	defer stop()
//
// Without the tag every function is a no-op and [Enabled] is false.
package prof
