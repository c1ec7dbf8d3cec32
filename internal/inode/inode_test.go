package inode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStat_SameFileSameKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	k1, err := Stat(path)
	require.NoError(t, err)
	k2, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestStat_DifferentFilesDifferentKeys(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	ka, err := Stat(a)
	require.NoError(t, err)
	kb, err := Stat(b)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestStat_MissingPathErrors(t *testing.T) {
	_, err := Stat(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestStatLstat_SymlinkResolvesToTargetOnlyViaStat(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	targetKey, err := Stat(target)
	require.NoError(t, err)

	statLinkKey, err := Stat(link)
	require.NoError(t, err)
	assert.Equal(t, targetKey, statLinkKey, "Stat follows symlinks to the target's identity")

	lstatLinkKey, err := Lstat(link)
	require.NoError(t, err)
	assert.NotEqual(t, targetKey, lstatLinkKey, "Lstat reports the symlink's own identity, not the target's")
}
