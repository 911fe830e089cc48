package wral

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireDirLockThenRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := acquireDirLock(dir, "orders")
	require.NoError(t, err)
	require.NoError(t, l.release())

	// Released lock allows re-acquisition.
	l2, err := acquireDirLock(dir, "orders")
	require.NoError(t, err)
	require.NoError(t, l2.release())
}

func TestAcquireDirLockRejectsDoubleLock(t *testing.T) {
	dir := t.TempDir()

	l, err := acquireDirLock(dir, "orders")
	require.NoError(t, err)
	defer l.release()

	_, err = acquireDirLock(dir, "orders")
	require.Error(t, err)
}

func TestReleaseNilLockIsNoop(t *testing.T) {
	var l *dirLock
	require.NoError(t, l.release())
}
