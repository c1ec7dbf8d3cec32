// Package inode computes the (device, inode) identity pair the recursive
// walker uses for symlink cycle detection (spec §4.C9 step 2, §8 property
// 6), via golang.org/x/sys/unix rather than the stdlib syscall package, to
// stay on the same platform-syscall dependency the rest of this module uses
// for Fsync, Fdatasync and Fallocate.
package inode

import "golang.org/x/sys/unix"

// Key uniquely identifies a filesystem object within a running kernel, for
// as long as it is not deleted.
type Key struct {
	Dev uint64
	Ino uint64
}

// Stat returns the Key for path, following symlinks.
func Stat(path string) (Key, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Key{}, err
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}

// Lstat returns the Key for path, without following a trailing symlink.
func Lstat(path string) (Key, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Key{}, err
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}
