package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestNewRunDirectory_Layout(t *testing.T) {
	base := t.TempDir()

	d, err := NewRunDirectory(base, "run-001")
	require.NoError(t, err)

	info, err := os.Stat(d.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	target, err := os.Readlink(filepath.Join(base, "runs", "latest"))
	require.NoError(t, err)
	assert.Equal(t, "run-001", target)
}

func TestNewRunDirectory_LatestRepointed(t *testing.T) {
	base := t.TempDir()

	_, err := NewRunDirectory(base, "run-001")
	require.NoError(t, err)
	_, err = NewRunDirectory(base, "run-002")
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(base, "runs", "latest"))
	require.NoError(t, err)
	assert.Equal(t, "run-002", target)
}

func TestWriteSpecLog_StripsANSI(t *testing.T) {
	base := t.TempDir()
	d, err := NewRunDirectory(base, "run-001")
	require.NoError(t, err)

	path, err := d.WriteSpecLog("checkout/guest flow", "\x1b[32mPASS\x1b[0m step 1\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PASS step 1\n", string(data))
	assert.Contains(t, path, "checkout_guest_flow")
}

func TestWriteSummary(t *testing.T) {
	base := t.TempDir()
	d, err := NewRunDirectory(base, "run-001")
	require.NoError(t, err)

	path, err := d.WriteSummary("results.txt", "all good\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Path(), "results.txt"), path)
}

func TestNewRunDirectory_Validation(t *testing.T) {
	_, err := NewRunDirectory("", "run-001")
	assert.Error(t, err)
	_, err = NewRunDirectory(t.TempDir(), "")
	assert.Error(t, err)
}
