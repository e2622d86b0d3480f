package disc

import (
	"bytes"
	"os"
	"testing"
)

const (
	ssdSize = 80 * 10 * 256
	dsdSize = 2 * 80 * 10 * 256
)

// sectorPattern gives each byte of a test sector a position-derived value.
func sectorPattern(size int, salt byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i)*3 + salt
	}
	return b
}

func TestSSDReadSector(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.ssd", ssdSize)
	want := sectorPattern(256, 0x11)
	patchImage(t, path, (2*10+5)*256, want) // track 2, sector 5
	loadImage(t, s, 0, path)

	s.Seek(0, 2)
	s.ReadSector(0, 5, 2, 0, false)
	if got := runOp(t, s, fdc, 5000); got != 256*pollsPerByte {
		t.Fatalf("read took %d polls, want %d", got, 256*pollsPerByte)
	}
	if !bytes.Equal(fdc.data, want) {
		t.Fatal("sector data does not match the image")
	}
	if fdc.finished != 1 {
		t.Fatalf("finished = %d, want 1", fdc.finished)
	}
}

func TestReadPacing(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", ssdSize))
	s.ReadSector(0, 0, 0, 0, false)
	pollN(s, pollsPerByte-1)
	if len(fdc.data) != 0 {
		t.Fatalf("%d bytes before the first byte time", len(fdc.data))
	}
	s.Poll()
	if len(fdc.data) != 1 {
		t.Fatalf("%d bytes at the first byte time, want 1", len(fdc.data))
	}
}

func TestDSDSideInterleave(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.dsd", dsdSize)
	want := sectorPattern(256, 0x22)
	patchImage(t, path, ((5*2+1)*10+7)*256, want) // track 5, side 1, sector 7
	loadImage(t, s, 0, path)

	s.Seek(0, 5)
	s.ReadSector(0, 7, 5, 1, false)
	runOp(t, s, fdc, 5000)
	if !bytes.Equal(fdc.data, want) {
		t.Fatal("side-1 sector read the wrong bytes")
	}
}

func TestReadMissesDeferNotFound(t *testing.T) {
	cases := []struct {
		name                string
		sector, track, side int
		density             bool
	}{
		{"wrong track", 0, 2, 0, false},
		{"density mismatch", 0, 3, 0, true},
		{"no such side", 0, 3, 1, false},
		{"sector beyond track", 10, 3, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, fdc := newTestSystem()
			loadImage(t, s, 0, makeImage(t, "a.ssd", ssdSize))
			s.Seek(0, 3)
			s.ReadSector(0, tc.sector, tc.track, tc.side, tc.density)
			if got := runOp(t, s, fdc, 1000); got != 500 {
				t.Fatalf("miss deferred %d polls, want 500", got)
			}
			if fdc.notFound != 1 || len(fdc.data) != 0 {
				t.Fatalf("wrong outcome: %+v", fdc)
			}
		})
	}
}

func TestSeekClamp(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.ssd", ssdSize)
	want := sectorPattern(256, 0x33)
	patchImage(t, path, 79*10*256, want) // track 79, sector 0
	loadImage(t, s, 0, path)

	s.Seek(0, 300) // head stops at the last physical track
	s.ReadSector(0, 0, 79, 0, false)
	runOp(t, s, fdc, 5000)
	if !bytes.Equal(fdc.data, want) {
		t.Fatal("clamped seek did not leave the head on track 79")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.ssd", ssdSize)
	loadImage(t, s, 0, path)

	want := sectorPattern(256, 0x44)
	for _, b := range want {
		fdc.feed = append(fdc.feed, int(b))
	}
	s.Seek(0, 2)
	s.WriteSector(0, 5, 2, 0, false)
	if got := runOp(t, s, fdc, 5000); got != 256*pollsPerByte {
		t.Fatalf("write took %d polls, want %d", got, 256*pollsPerByte)
	}
	if fdc.finished != 1 || fdc.lasts != 1 {
		t.Fatalf("finished = %d, lasts = %d", fdc.finished, fdc.lasts)
	}

	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img[(2*10+5)*256:(2*10+6)*256], want) {
		t.Fatal("written sector does not match the feed")
	}
}

func TestWriteUnderrunPadsZeros(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.ssd", ssdSize)
	patchImage(t, path, 0, bytes.Repeat([]byte{0xEE}, 256))
	loadImage(t, s, 0, path)

	fdc.feed = []int{1, 2, 3}
	s.WriteSector(0, 0, 0, 0, false)
	runOp(t, s, fdc, 5000)

	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if img[0] != 1 || img[1] != 2 || img[2] != 3 {
		t.Fatal("fed bytes not written")
	}
	if !bytes.Equal(img[3:256], make([]byte, 253)) {
		t.Fatal("starved write did not pad with zeros")
	}
}

func TestWriteProtectedMedia(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", ssdSize))
	s.drives[0].media.(*imageMedia).writeProt = true

	if !s.WriteProtected(0) {
		t.Fatal("protection not reported")
	}
	s.WriteSector(0, 0, 0, 0, false)
	if fdc.protects != 1 {
		t.Fatal("write against protected media did not refuse synchronously")
	}
	s.Format(0, 0, 0, false)
	if fdc.protects != 2 {
		t.Fatal("format against protected media did not refuse")
	}
	pollN(s, 20000)
	if fdc.finished != 0 || fdc.notFound != 0 {
		t.Fatalf("protected write produced callbacks: %+v", fdc)
	}
}

func TestReadAddressRotation(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", ssdSize))
	s.Seek(0, 2)

	for i := 0; i < 11; i++ {
		fdc.data = nil
		s.ReadAddress(0, 2, 0, false)
		if got := runOp(t, s, fdc, 200); got != 6*pollsPerByte {
			t.Fatalf("address took %d polls, want %d", got, 6*pollsPerByte)
		}
		id := fdc.data
		if len(id) != 6 {
			t.Fatalf("ID field is %d bytes", len(id))
		}
		wantSector := byte(i % 10)
		if id[0] != 2 || id[1] != 0 || id[2] != wantSector || id[3] != 1 {
			t.Fatalf("call %d ID = %v", i, id[:4])
		}
		crc := crc16(id[:4])
		if id[4] != byte(crc>>8) || id[5] != byte(crc) {
			t.Fatalf("ID CRC mismatch: %v", id)
		}
	}
	if fdc.finished != 11 {
		t.Fatalf("finished = %d, want 11", fdc.finished)
	}
}

func TestFormatZeroFillsOneTrack(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "a.ssd", ssdSize)
	patchImage(t, path, 0, bytes.Repeat([]byte{0xAA}, 3*10*256))
	loadImage(t, s, 0, path)

	s.Seek(0, 1)
	s.Format(0, 1, 0, false)
	if got := runOp(t, s, fdc, 50000); got != 10*256*pollsPerByte {
		t.Fatalf("format took %d polls, want %d", got, 10*256*pollsPerByte)
	}
	if fdc.finished != 1 {
		t.Fatalf("finished = %d, want 1", fdc.finished)
	}

	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	track := func(n int) []byte { return img[n*10*256 : (n+1)*10*256] }
	if !bytes.Equal(track(1), make([]byte, 10*256)) {
		t.Fatal("track 1 not zero-filled")
	}
	if bytes.Equal(track(0), make([]byte, 10*256)) || bytes.Equal(track(2), make([]byte, 10*256)) {
		t.Fatal("format spilled past track 1")
	}
}

func TestTruncatedImageReadsZeros(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "short.ssd", 1000))

	s.Seek(0, 2)
	s.ReadSector(0, 5, 2, 0, false)
	runOp(t, s, fdc, 5000)
	if fdc.finished != 1 {
		t.Fatal("read past the image end did not complete")
	}
	if !bytes.Equal(fdc.data, make([]byte, 256)) {
		t.Fatal("read past the image end delivered non-zero bytes")
	}
}

func TestWriteExtendsTruncatedImage(t *testing.T) {
	s, fdc := newTestSystem()
	path := makeImage(t, "short.ssd", 1000)
	loadImage(t, s, 0, path)

	want := sectorPattern(256, 0x55)
	for _, b := range want {
		fdc.feed = append(fdc.feed, int(b))
	}
	s.Seek(0, 2)
	s.WriteSector(0, 5, 2, 0, false)
	runOp(t, s, fdc, 5000)

	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	off := (2*10 + 5) * 256
	if len(img) != off+256 {
		t.Fatalf("image size = %d, want %d", len(img), off+256)
	}
	if !bytes.Equal(img[off:], want) {
		t.Fatal("extended write holds the wrong bytes")
	}
}
