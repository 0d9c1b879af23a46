package fanout

import (
	"path/filepath"
	"testing"
	"time"

	"videopipe/internal/codec/imagetype"
)

func TestDerivePathNormal(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 13, 45, 9, 250000000, time.UTC)
	typ := imagetype.Type{Format: imagetype.JPEG, DX: 1, DY: 1, Channels: 3}
	got := DerivePath("/base", "cam1", ts, typ, false, false)
	want := filepath.Join("/base", "2024", "03", "05", "13", "45", "cam1.09.jpg")
	if got != want {
		t.Errorf("DerivePath = %q, want %q", got, want)
	}
}

func TestDerivePathFast(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 13, 45, 9, 250000000, time.UTC)
	typ := imagetype.Type{Format: imagetype.Raw, DX: 1, DY: 1, Channels: 1}
	got := DerivePath("/base", "cam1", ts, typ, true, false)
	nnn := (250000000 / 1000) >> 10
	want := filepath.Join("/base", "2024", "03", "05", "13", "45", "09", fileName("cam1", nnn, ".pgm"))
	if got != want {
		t.Errorf("DerivePath = %q, want %q", got, want)
	}
}

func fileName(name string, nnn int, ext string) string {
	return name + "." + pad3(nnn) + ext
}

func pad3(n int) string {
	s := ""
	for _, d := range []int{n / 100 % 10, n / 10 % 10, n % 10} {
		s += string(rune('0' + d))
	}
	return s
}

func TestDerivePathEmptyName(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 13, 45, 9, 0, time.UTC)
	typ := imagetype.Type{Extra: "application/json"}
	got := DerivePath("/base", "", ts, typ, false, false)
	want := filepath.Join("/base", "2024", "03", "05", "13", "45", "09.dat")
	if got != want {
		t.Errorf("DerivePath = %q, want %q", got, want)
	}
}

func TestDerivePathTestModePinsYear(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 13, 45, 9, 0, time.UTC)
	typ := imagetype.Type{Format: imagetype.JPEG, DX: 1, DY: 1, Channels: 3}
	got := DerivePath("/base", "cam1", ts, typ, false, true)
	dir := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(got)))))
	if filepath.Base(dir) != "2000" {
		t.Errorf("expected test mode to pin year 2000, got path %q", got)
	}
}

func TestExtMapping(t *testing.T) {
	cases := []struct {
		typ  imagetype.Type
		want string
	}{
		{imagetype.Type{Format: imagetype.JPEG, DX: 1, DY: 1, Channels: 3}, ".jpg"},
		{imagetype.Type{Format: imagetype.Raw, DX: 1, DY: 1, Channels: 1}, ".pgm"},
		{imagetype.Type{Format: imagetype.Raw, DX: 1, DY: 1, Channels: 3}, ".ppm"},
		{imagetype.Type{Extra: "application/json"}, ".dat"},
	}
	for _, c := range cases {
		if got := ext(c.typ); got != c.want {
			t.Errorf("ext(%+v) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestPNMHeader(t *testing.T) {
	h := pnmHeader(imagetype.Type{DX: 4, DY: 3, Channels: 1})
	if string(h) != "P5\n4 3\n255\n" {
		t.Errorf("pnmHeader = %q", h)
	}
	h = pnmHeader(imagetype.Type{DX: 4, DY: 3, Channels: 3})
	if string(h) != "P6\n4 3\n255\n" {
		t.Errorf("pnmHeader = %q", h)
	}
}
