package imageconvert

import (
	"testing"

	"videopipe/internal/codec/imagetype"
)

func solidRaw(dx, dy int, r, g, b byte) Image {
	data := make([]byte, dx*dy*3)
	for i := 0; i < dx*dy; i++ {
		data[i*3], data[i*3+1], data[i*3+2] = r, g, b
	}
	return Image{Type: imagetype.Type{Format: imagetype.Raw, DX: dx, DY: dy, Channels: 3}, Data: data}
}

func TestConvertibleAcceptsJPEGAndRaw(t *testing.T) {
	if !Convertible(imagetype.Type{Format: imagetype.JPEG, DX: 1, DY: 1, Channels: 3}) {
		t.Error("jpeg should be convertible")
	}
	if !Convertible(imagetype.Type{Format: imagetype.Raw, DX: 1, DY: 1, Channels: 3}) {
		t.Error("raw should be convertible")
	}
	if Convertible(imagetype.Type{Format: imagetype.PNG, DX: 1, DY: 1, Channels: 3}) {
		t.Error("png should not be convertible")
	}
}

func TestRawToJpegRoundTrip(t *testing.T) {
	in := solidRaw(16, 8, 200, 50, 50)

	c := New()
	jpegImg, err := c.ToJpeg(in, 1, false)
	if err != nil {
		t.Fatalf("ToJpeg: %v", err)
	}
	if jpegImg.Type.Format != imagetype.JPEG {
		t.Fatalf("format = %v, want jpeg", jpegImg.Type.Format)
	}
	if jpegImg.Type.DX != 16 || jpegImg.Type.DY != 8 {
		t.Errorf("dimensions = %dx%d, want 16x8", jpegImg.Type.DX, jpegImg.Type.DY)
	}

	rawImg, err := c.ToRaw(jpegImg, 1, false)
	if err != nil {
		t.Fatalf("ToRaw: %v", err)
	}
	if rawImg.Type.Format != imagetype.Raw || rawImg.Type.Channels != 3 {
		t.Fatalf("roundtrip type = %+v, want raw/3-channel", rawImg.Type)
	}
	if len(rawImg.Data) != 16*8*3 {
		t.Errorf("roundtrip data length = %d, want %d", len(rawImg.Data), 16*8*3)
	}
}

func TestToRawMonochrome(t *testing.T) {
	in := solidRaw(4, 4, 255, 255, 255)

	c := New()
	out, err := c.ToRaw(in, 1, true)
	if err != nil {
		t.Fatalf("ToRaw: %v", err)
	}
	if out.Type.Channels != 1 {
		t.Fatalf("channels = %d, want 1", out.Type.Channels)
	}
	if len(out.Data) != 16 {
		t.Errorf("data length = %d, want 16", len(out.Data))
	}
	for _, b := range out.Data {
		if b < 250 {
			t.Errorf("expected near-white pixel, got %d", b)
		}
	}
}

func TestToJpegScalesDown(t *testing.T) {
	in := solidRaw(32, 16, 10, 20, 30)

	c := New()
	out, err := c.ToJpeg(in, 4, false)
	if err != nil {
		t.Fatalf("ToJpeg: %v", err)
	}
	if out.Type.DX != 8 || out.Type.DY != 4 {
		t.Errorf("scaled dimensions = %dx%d, want 8x4", out.Type.DX, out.Type.DY)
	}
}

func TestDecodeRejectsUnconvertibleFormat(t *testing.T) {
	c := New()
	_, err := c.ToJpeg(Image{Type: imagetype.Type{Format: imagetype.PNG, DX: 1, DY: 1, Channels: 3}}, 1, false)
	if err == nil {
		t.Fatal("expected an error for a non-convertible format")
	}
}
