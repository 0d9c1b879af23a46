// If you are AI: This file implements the counting semaphore (C2) used as
// the channel's control-segment mutex. Per spec.md §4.2 the storage type and
// public API must be identical regardless of whether the underlying
// primitive is a POSIX unnamed semaphore or a SysV semaphore; this
// implementation picks a SysV semaphore set of one member, since Go's
// standard library and golang.org/x/sys/unix expose semget/semop/semctl
// directly without cgo, whereas a pshared POSIX sem_t requires one.

package sema

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

var byteOrder = binary.LittleEndian

// StorageSize is the size in bytes of the opaque placement-construction
// cell, per spec.md §9 ("Placement construction in shared memory"): a
// fixed-size storage cell plus a pure function turning a pointer to it into
// a handle. One int32 holds the SysV semaphore set id; a second marks
// whether it has been initialized, so Open can distinguish "not yet
// created" from "id zero" (a valid semid).
const StorageSize = 8

// Storage is the fixed-size cell embedded in a shared-memory control
// segment. It must never be copied once placed; Init and Open both require
// a pointer into the live mapping.
type Storage = [StorageSize]byte

const initializedMagic = 0x53454d41 // "SEMA"

// Semaphore is a handle onto a semaphore placement-constructed in a
// Storage cell. All methods are signal-safe in the sense required by
// spec.md §4.2: they are thin wrappers around a single semop(2) syscall
// with no heap allocation or locking of their own.
type Semaphore struct {
	id int
}

// Init placement-constructs a new semaphore with initial value 1 (the
// channel mutex is always initialized to 1, per spec.md §4.2) into storage,
// which must be part of a freshly created (zeroed) shared-memory segment.
func Init(storage *Storage) (*Semaphore, error) {
	id, err := unix.Semget(unix.IPC_PRIVATE, 1, unix.IPC_CREAT|0600)
	if err != nil {
		return nil, fmt.Errorf("sema: semget: %w", err)
	}
	if err := semctlSetVal(id, 0, 1); err != nil {
		return nil, fmt.Errorf("sema: semctl setval: %w", err)
	}
	byteOrder.PutUint32(storage[0:4], initializedMagic)
	byteOrder.PutUint32(storage[4:8], uint32(id))
	return &Semaphore{id: id}, nil
}

// Open attaches to a semaphore that another process Init'd into the same
// shared-memory offset. Unlike a pshared POSIX semaphore there is nothing
// to "attach" for a SysV set beyond remembering its id, which is itself
// process-wide kernel state rather than a pointer, so two processes with
// the same mapping trivially see the same semaphore.
func Open(storage *Storage) (*Semaphore, error) {
	if byteOrder.Uint32(storage[0:4]) != initializedMagic {
		return nil, fmt.Errorf("sema: storage not initialized")
	}
	id := int(byteOrder.Uint32(storage[4:8]))
	return &Semaphore{id: id}, nil
}

// Increment posts the semaphore (V operation).
func (s *Semaphore) Increment() error {
	return unix.Semop(s.id, []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: 0}})
}

// Decrement waits on the semaphore (P operation), blocking until available.
func (s *Semaphore) Decrement() error {
	return unix.Semop(s.id, []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}})
}

// DecrementTimeout waits up to timeout for the semaphore to become
// available, returning ok=false on timeout rather than an error.
func (s *Semaphore) DecrementTimeout(timeout time.Duration) (ok bool, err error) {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	err = unix.Semtimedop(s.id, []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}}, &ts)
	if err == nil {
		return true, nil
	}
	if err == unix.EAGAIN {
		return false, nil
	}
	return false, err
}

// Destroy removes the underlying SysV semaphore set. It is called by the
// owning publisher's destructor, after which Storage no longer refers to a
// live kernel object.
func (s *Semaphore) Destroy() error {
	return semctlRmid(s.id)
}

// semctlSetVal and semctlRmid issue raw semctl(2) syscalls directly rather
// than going through a semun-union wrapper: the union's layout varies by
// whether the "val" member is read as the first machine word or through a
// pointer member, so callers across the ecosystem (e.g. container runtimes)
// commonly bypass the union entirely and pass the value/pointer as the raw
// fourth syscall argument, which is what the kernel itself reads.
func semctlSetVal(id, num, val int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(unix.SETVAL), uintptr(val), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semctlRmid(id int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, uintptr(unix.IPC_RMID), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Lock acquires the mutex; it is the name channel code reaches for, an
// alias of Decrement matching the "used exclusively as a mutex initialized
// to 1" contract in spec.md §4.2.
func (s *Semaphore) Lock() { s.Decrement() }

// Unlock releases the mutex, an alias of Increment.
func (s *Semaphore) Unlock() { s.Increment() }
