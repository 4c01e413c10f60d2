//go:build linux

package regmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func tempDevice(t *testing.T, size int64) string {
	p := filepath.Join(t.TempDir(), "mem")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return p
}

func TestDevMemRefcount(t *testing.T) {
	page := uint64(unix.Getpagesize())
	d := &DevMem{Path: tempDevice(t, int64(2*page))}

	a, err := d.Map(page+8, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Refs())
	f := d.f

	b, err := d.Map(page, 64)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Refs())
	assert.Same(t, f, d.f, "device opened once")

	a.Store(0, 0x5a5a1234)
	assert.Equal(t, uint32(0x5a5a1234), b.Load(2))

	require.NoError(t, a.Close())
	assert.Equal(t, 1, d.Refs())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, d.Refs())
	require.NoError(t, b.Close())
	assert.Equal(t, 0, d.Refs())
	assert.Nil(t, d.f)
}

func TestDevMemOpenFailure(t *testing.T) {
	d := &DevMem{Path: filepath.Join(t.TempDir(), "missing")}
	_, err := d.Map(0, 4096)
	assert.True(t, errors.Is(err, ErrHardwareAccess), "%v", err)
	assert.Equal(t, 0, d.Refs())
}

func TestDevMemBadSize(t *testing.T) {
	d := &DevMem{Path: tempDevice(t, 4096)}
	_, err := d.Map(0, 6)
	assert.True(t, errors.Is(err, ErrHardwareAccess))
	assert.Equal(t, 0, d.Refs())
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, DefaultDevice, Default().Path)
}
