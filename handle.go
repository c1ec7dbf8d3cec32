package asyncfs

import (
	"io"
	"io/fs"
	"os"
)

// Mode selects the access mode a Handle was opened with (spec §6 "Handle
// modes").
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWrite
)

// OpenOptions are the flags accepted by Executor.OpenFile, layered on top of
// Mode (spec §6 "Handle modes": "plus options flags including close-on-exec,
// create, truncate, append").
type OpenOptions struct {
	Create    bool
	Truncate  bool
	Append    bool
	Exclusive bool
	Perm      fs.FileMode
}

func (o OpenOptions) flags(mode Mode) int {
	var flags int
	switch mode {
	case ModeRead:
		flags = os.O_RDONLY
	case ModeWrite:
		flags = os.O_WRONLY
	case ModeReadWrite:
		flags = os.O_RDWR
	}
	if o.Create {
		flags |= os.O_CREATE
	}
	if o.Truncate {
		flags |= os.O_TRUNC
	}
	if o.Append {
		flags |= os.O_APPEND
	}
	if o.Exclusive {
		flags |= os.O_EXCL
	}
	return flags
}

// Handle is a single-ownership wrapper over an open OS file descriptor
// (spec §3 "Handle (external, linear)"). Go has no move/linear types, so
// non-copyability is enforced by convention (never pass Handle by value;
// always by *Handle) plus the noCopy marker, which `go vet`'s copylocks
// check flags if a Handle is ever copied after first use.
//
// A Handle is only ever reachable through the registry (behind a HandleID)
// or, momentarily, through a handleSlot while crossing the lane boundary
// (§4.C4) — callers never hold a *Handle across a suspension point
// themselves.
type Handle struct {
	_    noCopy
	file *os.File
	path string
	mode Mode
}

// noCopy, embedded by value, causes `go vet -copylocks` to flag accidental
// copies of the type that embeds it. It has no runtime behavior.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Path returns the path the handle was opened against.
func (h *Handle) Path() string { return h.path }

// ModeOf returns the access mode the handle was opened with.
func (h *Handle) ModeOf() Mode { return h.mode }

// ReadInto reads into buf, returning the number of bytes read.
func (h *Handle) ReadInto(buf []byte) (int, error) {
	return h.file.Read(buf)
}

// Read reads up to count bytes, returning a freshly allocated slice sized to
// what was actually read.
func (h *Handle) Read(count int) ([]byte, error) {
	buf := make([]byte, count)
	n, err := h.file.Read(buf)
	return buf[:n], err
}

// Write writes bytes in full.
func (h *Handle) Write(b []byte) (int, error) {
	return h.file.Write(b)
}

// Seek repositions the handle, per io.Seeker semantics.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

// Sync fsyncs the handle's data (and, platform permitting, metadata).
func (h *Handle) Sync() error {
	return h.file.Sync()
}

// Close closes the underlying descriptor. Idempotent at the os.File level
// (a second Close returns an error, which callers of this package never
// observe because the registry only calls Close once per entry, §4.C5).
func (h *Handle) Close() error {
	return h.file.Close()
}

// Stat returns fs.FileInfo for the open handle (exposed for completeness per
// spec §6's Stat.info primitive; the recursive walker does its inode lookups
// by path via internal/inode instead).
func (h *Handle) Stat() (fs.FileInfo, error) {
	return h.file.Stat()
}

var _ io.ReadWriteSeeker = (*handleIOAdapter)(nil)

// handleIOAdapter adapts *Handle to io.ReadWriteSeeker for callers (e.g.
// streaming copy helpers) that want the stdlib io interfaces rather than
// this package's explicit method names.
type handleIOAdapter struct{ h *Handle }

func (a *handleIOAdapter) Read(p []byte) (int, error)  { return a.h.ReadInto(p) }
func (a *handleIOAdapter) Write(p []byte) (int, error) { return a.h.Write(p) }
func (a *handleIOAdapter) Seek(offset int64, whence int) (int64, error) {
	return a.h.Seek(offset, whence)
}

// IO returns an io.ReadWriteSeeker view of h, for callers (e.g. io.Copy, or
// anything else that wants the stdlib I/O interfaces) that would otherwise
// need a small wrapper of their own around this package's explicit method
// names. Must only be called from inside a Transaction/WithHandle body —
// the returned value embeds h, which is only valid for the duration of that
// call (spec §4.C4).
func (h *Handle) IO() io.ReadWriteSeeker { return &handleIOAdapter{h: h} }

// openHandle performs the actual (blocking) open syscall. It is always
// called from inside a lane job (spec §6 "Handle.open(path, mode, options)
// → Handle" is the given synchronous primitive this package builds on).
func openHandle(path string, mode Mode, opts OpenOptions) (*Handle, error) {
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(path, opts.flags(mode), perm)
	if err != nil {
		return nil, err
	}
	return &Handle{file: f, path: path, mode: mode}, nil
}
