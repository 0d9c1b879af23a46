// If you are AI: This file implements the image-output fan-out (C7),
// grounded on gimageoutput.cpp's ImageOutput::send and on the teacher's
// internal/channel publisher.go for the "log, don't throw" failure style
// used by non-fatal write errors.

package fanout

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"videopipe/internal/channel"
	"videopipe/internal/codec/imagetype"
	"videopipe/internal/fatpipe"
	"videopipe/internal/metrics"
)

// Publisher is the subset of *channel.Publisher that Output depends on.
type Publisher interface {
	Publish(payload []byte, typeStr string) error
}

// FatPipe is the subset of *fatpipe.FatPipe that Output depends on.
type FatPipe interface {
	Send(payload []byte, typeStr string) error
}

var (
	_ Publisher = (*channel.Publisher)(nil)
	_ FatPipe   = (*fatpipe.FatPipe)(nil)
)

// Output fans out one send() call to up to three destinations, per
// spec.md §4.7: a channel publisher, a fat pipe, and a time-derived
// filesystem path.
//
// Allocation: dirCache holds the most recently created directory and
// lastPath the most recently written file, both reused across Send calls
// to implement the "cached old dir" fast-path and the duplicate-path skip.
type Output struct {
	Name    string // component name, logged and used to derive <name> in paths
	BaseDir string // filesystem root; empty disables persistence
	Fast    bool   // sub-second-resolution path derivation
	Test    bool   // pin year/day for reproducible output, per spec.md §4.7

	Publisher Publisher
	FatPipe   FatPipe

	log      *log.Logger
	mu       sync.Mutex // guards dirCache, invalidated asynchronously by watcher
	dirCache string
	lastPath string
	watcher  *dirWatcher
}

// NewOutput constructs a fan-out with the given logging prefix. Publisher
// and FatPipe may be left nil to disable those paths; BaseDir empty
// disables filesystem persistence.
func NewOutput(name string) *Output {
	return &Output{
		Name: name,
		log:  log.New(os.Stderr, fmt.Sprintf("fanout[%s] ", name), log.LstdFlags),
	}
}

// Send implements spec.md §4.7's send(payload, type, timestamp=now): publish,
// then fat-pipe, then persist, in that order. Publish/fat-pipe errors are
// returned; persistence failures are logged and swallowed, per §7's
// "io-error" propagation policy for the fan-out writer.
func (o *Output) Send(payload []byte, typ imagetype.Type) error {
	return o.SendAt(payload, typ, time.Now())
}

// SendAt is Send with an explicit timestamp, used by tests and by callers
// replaying timestamped sources.
func (o *Output) SendAt(payload []byte, typ imagetype.Type, ts time.Time) error {
	typeStr := typ.String()

	if o.Publisher != nil {
		if err := o.Publisher.Publish(payload, typeStr); err != nil {
			return fmt.Errorf("fanout[%s]: publish: %w", o.Name, err)
		}
	}

	if o.FatPipe != nil {
		if err := o.FatPipe.Send(payload, typeStr); err != nil {
			return fmt.Errorf("fanout[%s]: fat pipe send: %w", o.Name, err)
		}
	}

	if o.BaseDir != "" {
		o.persist(payload, typ, ts)
	}

	return nil
}

// persist writes payload to its derived path, creating intermediate
// directories only when the cached directory differs from the one just
// derived, and skipping the write entirely when the derived path matches
// the last one written (spec.md §4.7's duplicate-path guard).
func (o *Output) persist(payload []byte, typ imagetype.Type, ts time.Time) {
	path := DerivePath(o.BaseDir, o.Name, ts, typ, o.Fast, o.Test)
	if path == o.lastPath {
		return
	}

	dir := filepath.Dir(path)
	o.mu.Lock()
	cached := o.dirCache
	o.mu.Unlock()
	if dir != cached {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			o.log.Printf("mkdir %s: %v", dir, err)
			return
		}
		o.mu.Lock()
		o.dirCache = dir
		o.mu.Unlock()
		if o.watcher != nil {
			o.watcher.track(dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		o.log.Printf("create %s: %v", path, err)
		return
	}
	defer f.Close()

	if typ.Format == imagetype.Raw {
		if _, err := f.Write(pnmHeader(typ)); err != nil {
			o.log.Printf("write pnm header %s: %v", path, err)
			return
		}
	}

	if _, err := f.Write(payload); err != nil {
		o.log.Printf("write %s: %v", path, err)
		return
	}
	if err := f.Close(); err != nil {
		o.log.Printf("close %s: %v", path, err)
		return
	}

	o.lastPath = path
	metrics.FramesPersisted.WithLabelValues(o.Name).Inc()
}

// pnmHeader synthesizes the minimal PNM header spec.md §4.7 requires for
// raw payloads: "P5\n<dx> <dy>\n255\n" for 1-channel, "P6\n..." for 3.
func pnmHeader(typ imagetype.Type) []byte {
	magic := "P5"
	if typ.Channels == 3 {
		magic = "P6"
	}
	return []byte(fmt.Sprintf("%s\n%d %d\n255\n", magic, typ.DX, typ.DY))
}

// ext returns the filename extension for a type's format, per spec.md §4.7:
// .jpg for JPEG, .pgm for raw 1-channel, .ppm for raw 3-channel, .dat
// otherwise.
func ext(typ imagetype.Type) string {
	switch typ.Format {
	case imagetype.JPEG:
		return ".jpg"
	case imagetype.Raw:
		if typ.Channels == 3 {
			return ".ppm"
		}
		return ".pgm"
	default:
		return ".dat"
	}
}

// DerivePath computes the time-derived persistence path from spec.md §4.7.
// Test mode pins the year to 2000 and the day to 1 or 2 (alternating on
// the timestamp's own day-of-year parity) for reproducible tests.
func DerivePath(base, name string, ts time.Time, typ imagetype.Type, fast, test bool) string {
	t := ts.UTC()
	year, _, day := t.Date()
	if test {
		year = 2000
		day = 1 + t.YearDay()%2
	}

	stem := name
	if stem != "" {
		stem += "."
	}

	if !fast {
		return filepath.Join(base,
			fmt.Sprintf("%04d", year),
			fmt.Sprintf("%02d", t.Month()),
			fmt.Sprintf("%02d", day),
			fmt.Sprintf("%02d", t.Hour()),
			fmt.Sprintf("%02d", t.Minute()),
			fmt.Sprintf("%s%02d%s", stem, t.Second(), ext(typ)),
		)
	}

	nnn := t.Nanosecond() / 1000 >> 10
	return filepath.Join(base,
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%02d", t.Hour()),
		fmt.Sprintf("%02d", t.Minute()),
		fmt.Sprintf("%02d", t.Second()),
		fmt.Sprintf("%s%03d%s", stem, nnn, ext(typ)),
	)
}
