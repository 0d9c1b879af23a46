// If you are AI: This file implements the shared-memory segment primitive (C1).
// It wraps POSIX shared memory (backed by /dev/shm on Linux) with mmap/mremap
// and the lifecycle operations that channel.Publisher and channel.Subscriber
// build on: create-exclusive, open-existing, create-anonymous, remap, inherit,
// unlink, cleanup.

package shmem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Prefix is prepended to every user-supplied channel name when deriving the
// backing shared-memory object name, matching the §6 "osname(<name>)" rule.
const Prefix = "videopipe."

// shmDir is where tmpfs-backed shared memory objects live on Linux. Using a
// plain file under /dev/shm instead of the libc shm_open() wrapper lets this
// package avoid cgo while remaining bit-compatible: glibc's shm_open is
// itself implemented as open() under this same directory.
const shmDir = "/dev/shm"

// Segment is a memory-mapped shared-memory region.
//
// Lock expectations: callers serialize Remap against any other access to
// the mapping themselves (the control-segment mutex in package sema, for
// segments that carry one). Segment itself does no locking.
// Allocation: one mmap per Segment; Remap may replace it in place or move it.
type Segment struct {
	name   string // OS-resolved name ("" for anonymous)
	path   string // backing file path ("" for anonymous)
	fd     int
	size   int
	data   []byte
	linked bool // true if this Segment owns the filesystem name and must unlink it
}

// OSName resolves a user-visible channel name to the OS object name used to
// back it, per spec.md §6 ("osname(<name>)"). Linux has no leading slash
// requirement once the shm_open indirection is bypassed in favor of a plain
// /dev/shm file, so the same transform serves both the control segment name
// and its "<name>.d" data-segment sibling.
func OSName(name string) string {
	return Prefix + name
}

// ErrInvalidName is returned when a channel name violates the §3 grammar.
var ErrInvalidName = errors.New("shmem: invalid name")

// ValidateName enforces the channel-name grammar from spec.md §3/§6: no
// slashes, no backslash, no '*' or '?', and it must not start with '_'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if name[0] == '_' {
		return fmt.Errorf("%w: %q starts with '_'", ErrInvalidName, name)
	}
	for _, r := range name {
		switch r {
		case '/', '\\', '*', '?':
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, string(r))
		}
	}
	return nil
}

// ErrExists is returned by CreateExclusive when the backing object already
// exists; it is the *resource-exists* kind from spec.md §7.
var ErrExists = errors.New("shmem: already exists")

// ErrMissing is returned by OpenExisting when the backing object is absent;
// it is the *resource-missing* kind from spec.md §7.
var ErrMissing = errors.New("shmem: does not exist")

// CreateExclusive creates a new named shared-memory segment. It fails with
// ErrExists if the name is already taken. On success only the returned
// Segment's Unlink removes the filesystem name; nothing removes it at
// process exit. The mapping itself survives until Close.
func CreateExclusive(name string, size int) (*Segment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(shmDir, OSName(name))
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: %s (remove stale /dev/shm/%s if no publisher owns it)", ErrExists, name, OSName(name))
		}
		return nil, fmt.Errorf("shmem: create %s: %w", name, err)
	}
	seg, err := newSegment(fd, path, size, true)
	if err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, err
	}
	return seg, nil
}

// OpenExisting opens a shared-memory segment that another process created.
// Size is derived from the backing file via fstat, per spec.md §4.1.
func OpenExisting(name string) (*Segment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(shmDir, OSName(name))
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, name)
		}
		return nil, fmt.Errorf("shmem: open %s: %w", name, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmem: fstat %s: %w", name, err)
	}
	seg, err := newSegment(fd, path, int(st.Size), false)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return seg, nil
}

// CreateAnonymous creates an unnamed segment usable only via an inherited
// file descriptor, used by the fat pipe (C5) where no subscriber ever opens
// the segment by name.
func CreateAnonymous(size int) (*Segment, error) {
	fd, err := unix.MemfdCreate("videopipe.anon", 0)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create: %w", err)
	}
	seg, err := newSegment(fd, "", size, false)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return seg, nil
}

// FromFD wraps an already-open, already-sized shared-memory file
// descriptor, used on the receiving end of an SCM_RIGHTS transfer (C5)
// where the fd arrives via recvmsg rather than open(). The size is derived
// from the descriptor via fstat, since the sender already sized it with
// ftruncate before transferring it.
func FromFD(fd int) (*Segment, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("shmem: fstat inherited fd: %w", err)
	}
	return mapSegment(fd, "", int(st.Size), false)
}

func newSegment(fd int, path string, size int, linked bool) (*Segment, error) {
	if size > 0 {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			return nil, fmt.Errorf("shmem: ftruncate: %w", err)
		}
	}
	return mapSegment(fd, path, size, linked)
}

func mapSegment(fd int, path string, size int, linked bool) (*Segment, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmem: mmap: %w", err)
	}
	return &Segment{path: path, fd: fd, size: size, data: data, linked: linked}, nil
}

// Bytes returns the mapped region. It is valid until the next Remap or Close.
func (s *Segment) Bytes() []byte { return s.data }

// Size returns the current mapping size.
func (s *Segment) Size() int { return s.size }

// FD returns the underlying file descriptor, used to pass the segment to a
// child process (C5) or to register it with inherit().
func (s *Segment) FD() int { return s.fd }

// Remap truncates the backing object to newSize and remaps it. If mayMove is
// false and the kernel cannot extend the mapping in place, Remap returns
// (false, nil) without altering the segment — used when a semaphore lives
// inside the segment and must not move. If mayMove is true (the common case,
// since no semaphore lives in the data segment per spec.md §4.1) the mapping
// may be relocated transparently.
func (s *Segment) Remap(newSize int, mayMove bool) (bool, error) {
	if newSize == s.size {
		return true, nil
	}
	if err := unix.Ftruncate(s.fd, int64(newSize)); err != nil {
		return false, fmt.Errorf("shmem: ftruncate remap: %w", err)
	}
	flags := 0
	if mayMove {
		flags = unix.MREMAP_MAYMOVE
	}
	newData, err := unix.Mremap(s.data, newSize, flags)
	if err != nil {
		if !mayMove {
			// shrink the backing file back; the mapping is unchanged.
			unix.Ftruncate(s.fd, int64(s.size))
			return false, nil
		}
		return false, fmt.Errorf("shmem: mremap: %w", err)
	}
	s.data = newData
	s.size = newSize
	return true, nil
}

// Inherit clears close-on-exec so a forked child retains the descriptor
// across exec, used by the fat pipe's child-side setup.
func (s *Segment) Inherit() error {
	_, err := unix.FcntlInt(uintptr(s.fd), unix.F_SETFD, 0)
	return err
}

// Unlink removes the filesystem name but keeps the mapping usable by this
// process until Close.
func (s *Segment) Unlink() error {
	if s.path == "" || !s.linked {
		return nil
	}
	err := os.Remove(s.path)
	s.linked = false
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("shmem: unlink %s: %w", s.path, err)
	}
	return nil
}

// Close unmaps the region and closes the descriptor. It does not unlink;
// callers that own the name call Unlink first (typically from a publisher
// destructor, per spec.md §3 Lifecycles).
func (s *Segment) Close() error {
	if s.data != nil {
		unix.Munmap(s.data)
		s.data = nil
	}
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
	return nil
}

// Cleanup is the signal-safe-adjacent helper from spec.md §4.1: it opens a
// named segment, unlinks its name, maps it, invokes fn on the contents, then
// unmaps. It is used by administrative tooling, not by the hot path, so it
// is not held to the async-signal-safe subset described in spec.md §9
// ("Signal-safe cleanup"). No signal handler in this repository performs
// that cleanup; segment names are removed only through Unlink.
func Cleanup(name string, fn func([]byte)) error {
	seg, err := OpenExisting(name)
	if err != nil {
		return err
	}
	defer seg.Close()
	if err := seg.Unlink(); err != nil {
		return err
	}
	fn(seg.Bytes())
	return nil
}

// PlaceholderPath returns the path of the administrative placeholder file
// for a channel's control segment, per spec.md §6
// ("/tmp/osname(<name>).x").
func PlaceholderPath(name string) string {
	return filepath.Join(os.TempDir(), OSName(name)+".x")
}

// CreatePlaceholder creates the empty sentinel file alongside a control
// segment so administrative tooling can enumerate and race-free-delete
// channels without parsing /dev/shm directly.
func CreatePlaceholder(name string) error {
	f, err := os.OpenFile(PlaceholderPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("shmem: create placeholder for %s: %w", name, err)
	}
	return f.Close()
}

// RemovePlaceholder removes the sentinel file created by CreatePlaceholder.
func RemovePlaceholder(name string) error {
	err := os.Remove(PlaceholderPath(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List enumerates channel names that currently have a placeholder file,
// mirroring spec.md §4.1's "administrative tooling can enumerate them".
func List() ([]string, error) {
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		return nil, err
	}
	var names []string
	suffix := ".x"
	for _, e := range entries {
		n := e.Name()
		if len(n) > len(Prefix)+len(suffix) && n[:len(Prefix)] == Prefix && n[len(n)-len(suffix):] == suffix {
			names = append(names, n[len(Prefix):len(n)-len(suffix)])
		}
	}
	return names, nil
}
