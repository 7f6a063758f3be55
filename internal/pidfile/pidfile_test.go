package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemove(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "run", "worker.pid"))
	assert.False(t, p.Exists())

	require.NoError(t, p.Write(4242))
	assert.True(t, p.Exists())

	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, p.Remove())
	assert.False(t, p.Exists())
	assert.NoError(t, p.Remove(), "removing twice is fine")
}

func TestRunningDetectsLiveProcess(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "worker.pid"))
	require.NoError(t, p.Write(os.Getpid()))

	pid, alive := p.Running()
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, alive)
}

func TestRunningIgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, alive := New(path).Running()
	assert.False(t, alive)

	_, alive = New(filepath.Join(t.TempDir(), "missing.pid")).Running()
	assert.False(t, alive)
}
