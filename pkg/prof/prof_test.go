//go:build profile

package prof

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCPU(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	stop, err := StartCPU(path)
	require.NoError(t, err)

	_, err = StartCPU(filepath.Join(t.TempDir(), "cpu2.prof"))
	assert.ErrorIs(t, err, ErrCPUProfileActive)

	require.NoError(t, stop())
	require.NoError(t, stop())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())

	stop, err = StartCPU(path)
	require.NoError(t, err)
	require.NoError(t, stop())
}

func TestStartCPUInvalidPath(t *testing.T) {
	_, err := StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, Enabled)
}
