package shmem

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func testName(t *testing.T) string {
	return fmt.Sprintf("test%d_%d", os.Getpid(), time.Now().UnixNano())
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"frontdoor", true},
		{"front-door_2", true},
		{"", false},
		{"_leading", false},
		{"has/slash", false},
		{"has\\backslash", false},
		{"has*star", false},
		{"has?question", false},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if c.valid && err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", c.name, err)
		}
		if !c.valid && err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", c.name)
		}
	}
}

func TestOSName(t *testing.T) {
	if got := OSName("foo"); got != "videopipe.foo" {
		t.Errorf("OSName = %q, want videopipe.foo", got)
	}
}

func TestPlaceholderPath(t *testing.T) {
	got := PlaceholderPath("foo")
	want := os.TempDir() + "/videopipe.foo.x"
	if got != want {
		t.Errorf("PlaceholderPath = %q, want %q", got, want)
	}
}

func TestCreateExclusiveThenOpenExisting(t *testing.T) {
	name := testName(t)
	seg, err := CreateExclusive(name, 64)
	if err != nil {
		t.Fatalf("CreateExclusive: %v", err)
	}
	defer func() {
		seg.Unlink()
		seg.Close()
	}()

	if seg.Size() != 64 {
		t.Errorf("Size = %d, want 64", seg.Size())
	}
	copy(seg.Bytes(), []byte("hello"))

	seg2, err := OpenExisting(name)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	defer seg2.Close()
	if string(seg2.Bytes()[:5]) != "hello" {
		t.Errorf("OpenExisting saw %q, want %q", seg2.Bytes()[:5], "hello")
	}
}

func TestCreateExclusiveRejectsDuplicate(t *testing.T) {
	name := testName(t)
	seg, err := CreateExclusive(name, 16)
	if err != nil {
		t.Fatalf("CreateExclusive: %v", err)
	}
	defer func() {
		seg.Unlink()
		seg.Close()
	}()

	_, err = CreateExclusive(name, 16)
	if !errors.Is(err, ErrExists) {
		t.Errorf("second CreateExclusive error = %v, want ErrExists", err)
	}
}

func TestOpenExistingMissing(t *testing.T) {
	_, err := OpenExisting(testName(t))
	if !errors.Is(err, ErrMissing) {
		t.Errorf("OpenExisting error = %v, want ErrMissing", err)
	}
}

func TestRemapGrows(t *testing.T) {
	name := testName(t)
	seg, err := CreateExclusive(name, 16)
	if err != nil {
		t.Fatalf("CreateExclusive: %v", err)
	}
	defer func() {
		seg.Unlink()
		seg.Close()
	}()

	copy(seg.Bytes(), []byte("persist"))
	ok, err := seg.Remap(4096, true)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	if !ok {
		t.Fatal("Remap returned ok=false")
	}
	if seg.Size() != 4096 {
		t.Errorf("Size after remap = %d, want 4096", seg.Size())
	}
	if string(seg.Bytes()[:7]) != "persist" {
		t.Errorf("data after remap = %q, want %q", seg.Bytes()[:7], "persist")
	}
}

func TestCreateAnonymousHasNoFilesystemName(t *testing.T) {
	seg, err := CreateAnonymous(32)
	if err != nil {
		t.Fatalf("CreateAnonymous: %v", err)
	}
	defer seg.Close()
	if seg.Size() != 32 {
		t.Errorf("Size = %d, want 32", seg.Size())
	}
	if err := seg.Unlink(); err != nil {
		t.Errorf("Unlink on anonymous segment should be a no-op, got: %v", err)
	}
}

func TestFromFD(t *testing.T) {
	seg, err := CreateAnonymous(16)
	if err != nil {
		t.Fatalf("CreateAnonymous: %v", err)
	}
	defer seg.Close()
	copy(seg.Bytes(), []byte("viaFD"))

	seg2, err := FromFD(seg.FD())
	if err != nil {
		t.Fatalf("FromFD: %v", err)
	}
	defer seg2.Close()
	if string(seg2.Bytes()[:5]) != "viaFD" {
		t.Errorf("FromFD saw %q, want %q", seg2.Bytes()[:5], "viaFD")
	}
}

func TestPlaceholderLifecycleAndList(t *testing.T) {
	name := testName(t)
	if err := CreatePlaceholder(name); err != nil {
		t.Fatalf("CreatePlaceholder: %v", err)
	}
	defer RemovePlaceholder(name)

	names, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, want it to contain %q", names, name)
	}

	if err := RemovePlaceholder(name); err != nil {
		t.Fatalf("RemovePlaceholder: %v", err)
	}
	if err := RemovePlaceholder(name); err != nil {
		t.Errorf("second RemovePlaceholder should be a no-op, got: %v", err)
	}
}
