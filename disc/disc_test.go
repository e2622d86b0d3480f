package disc

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// testFDC records every controller callback and supplies write data from a
// canned feed. GetData answers -1 once the feed runs dry.
type testFDC struct {
	data      []byte
	feed      []int
	feedPos   int
	lasts     int
	finished  int
	notFound  int
	spunDown  int
	dataCRC   int
	headerCRC int
	protects  int
}

func (c *testFDC) Data(b uint8)    { c.data = append(c.data, b) }
func (c *testFDC) SpinDown()       { c.spunDown++ }
func (c *testFDC) FinishRead()     { c.finished++ }
func (c *testFDC) NotFound()       { c.notFound++ }
func (c *testFDC) DataCRCError()   { c.dataCRC++ }
func (c *testFDC) HeaderCRCError() { c.headerCRC++ }
func (c *testFDC) WriteProtect()   { c.protects++ }

func (c *testFDC) GetData(last bool) int {
	if last {
		c.lasts++
	}
	if c.feedPos >= len(c.feed) {
		return -1
	}
	v := c.feed[c.feedPos]
	c.feedPos++
	return v
}

// outcomes sums the terminal callbacks, for detecting operation completion.
func (c *testFDC) outcomes() int {
	return c.finished + c.notFound + c.dataCRC + c.headerCRC + c.protects
}

type testNoise struct{ deltas []int }

func (n *testNoise) Seek(delta int) { n.deltas = append(n.deltas, delta) }

type testDisplay struct{ labels []string }

func (d *testDisplay) SetEjectText(drive int, label string) {
	d.labels = append(d.labels, fmt.Sprintf("%d:%s", drive, label))
}

func newTestSystem() (*System, *testFDC) {
	fdc := &testFDC{}
	return NewSystem(fdc), fdc
}

func pollN(s *System, n int) {
	for i := 0; i < n; i++ {
		s.Poll()
	}
}

// runOp polls until a terminal controller callback lands, returning how
// many polls it took.
func runOp(t *testing.T, s *System, fdc *testFDC, max int) int {
	t.Helper()
	start := fdc.outcomes()
	for i := 1; i <= max; i++ {
		s.Poll()
		if fdc.outcomes() > start {
			return i
		}
	}
	t.Fatalf("operation did not complete within %d polls", max)
	return 0
}

// makeImage writes a zero-filled scratch file and returns its path.
func makeImage(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// patchImage stores bytes into an existing image at the given offset.
func patchImage(t *testing.T, path string, off int64, b []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteAt(b, off); err != nil {
		t.Fatal(err)
	}
}

// loadImage mounts an image and fails the test if that does not work.
func loadImage(t *testing.T, s *System, drive int, path string) {
	t.Helper()
	if err := s.Load(drive, path); err != nil {
		t.Fatalf("Load(%d, %q): %v", drive, path, err)
	}
}

func TestPollEmptySystem(t *testing.T) {
	s, fdc := newTestSystem()
	pollN(s, 1000)
	if fdc.outcomes() != 0 || fdc.spunDown != 0 {
		t.Fatalf("callbacks fired with nothing loaded: %+v", fdc)
	}
}

func TestNotFoundCountdownUnbound(t *testing.T) {
	s, fdc := newTestSystem()
	s.ReadSector(0, 0, 0, 0, false)
	if fdc.notFound != 0 {
		t.Fatal("not-found fired synchronously")
	}
	pollN(s, 9999)
	if fdc.notFound != 0 {
		t.Fatalf("not-found fired early: %d polls in", 9999)
	}
	s.Poll()
	if fdc.notFound != 1 {
		t.Fatal("not-found did not fire at 10000 polls")
	}
	pollN(s, 20000)
	if fdc.notFound != 1 {
		t.Fatalf("not-found refired: %d", fdc.notFound)
	}
}

func TestNotFoundRearmRestarts(t *testing.T) {
	s, fdc := newTestSystem()
	s.ReadSector(0, 0, 0, 0, false)
	pollN(s, 5000)
	s.WriteSector(0, 0, 0, 0, false)
	pollN(s, 9999)
	if fdc.notFound != 0 {
		t.Fatal("re-arming did not restart the delay")
	}
	s.Poll()
	if fdc.notFound != 1 {
		t.Fatal("not-found did not fire after re-arm")
	}
}

func TestUnboundOpsArmCountdown(t *testing.T) {
	ops := []struct {
		name string
		op   func(*System)
	}{
		{"read", func(s *System) { s.ReadSector(0, 0, 0, 0, false) }},
		{"write", func(s *System) { s.WriteSector(0, 0, 0, 0, false) }},
		{"address", func(s *System) { s.ReadAddress(0, 0, 0, false) }},
		{"format", func(s *System) { s.Format(0, 0, 0, false) }},
	}
	for _, tc := range ops {
		t.Run(tc.name, func(t *testing.T) {
			s, fdc := newTestSystem()
			tc.op(s)
			if got := runOp(t, s, fdc, 10001); got != 10000 {
				t.Fatalf("fired after %d polls, want 10000", got)
			}
			if fdc.notFound != 1 {
				t.Fatalf("wrong callback: %+v", fdc)
			}
		})
	}
}

func TestUnboundSeekIsQuiet(t *testing.T) {
	s, fdc := newTestSystem()
	noise := &testNoise{}
	s.Noise = noise
	s.Seek(0, 12)
	s.Seek(0, 5)
	pollN(s, 20000)
	if fdc.notFound != 0 {
		t.Fatal("seek armed the not-found countdown")
	}
	want := []int{12, -7}
	if len(noise.deltas) != 2 || noise.deltas[0] != want[0] || noise.deltas[1] != want[1] {
		t.Fatalf("noise deltas = %v, want %v", noise.deltas, want)
	}
}

func TestSeekTracksPerDrive(t *testing.T) {
	s, _ := newTestSystem()
	noise := &testNoise{}
	s.Noise = noise
	s.Seek(0, 40)
	s.Seek(1, 10)
	s.Seek(0, 41)
	want := []int{40, 10, 1}
	for i, d := range want {
		if noise.deltas[i] != d {
			t.Fatalf("noise deltas = %v, want %v", noise.deltas, want)
		}
	}
}

func TestBadDriveIgnored(t *testing.T) {
	s, fdc := newTestSystem()
	for _, d := range []int{-1, NumDrives} {
		s.ReadSector(d, 0, 0, 0, false)
		s.WriteSector(d, 0, 0, 0, false)
		s.ReadAddress(d, 0, 0, false)
		s.Format(d, 0, 0, false)
		s.Seek(d, 10)
		s.Close(d)
	}
	pollN(s, 20000)
	if fdc.outcomes() != 0 {
		t.Fatalf("out-of-range drive produced callbacks: %+v", fdc)
	}
}

func TestSelectBounds(t *testing.T) {
	s, _ := newTestSystem()
	s.Select(1)
	if s.Selected() != 1 {
		t.Fatal("select 1 did not stick")
	}
	s.Select(-1)
	s.Select(NumDrives)
	if s.Selected() != 1 {
		t.Fatal("out-of-range select changed the drive")
	}
}

func TestResetMasksOperations(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))

	// An in-flight read stops dead at reset: polling is masked.
	s.ReadSector(0, 0, 0, 0, false)
	pollN(s, 100)
	got := len(fdc.data)
	s.Reset()
	pollN(s, 10000)
	if len(fdc.data) != got {
		t.Fatal("read kept transferring after reset")
	}

	// Masked dispatch behaves like an empty drive.
	s2, fdc2 := newTestSystem()
	loadImage(t, s2, 0, makeImage(t, "b.ssd", 80*10*256))
	s2.Reset()
	s2.ReadSector(0, 0, 0, 0, false)
	if got := runOp(t, s2, fdc2, 10001); got != 10000 {
		t.Fatalf("masked read fired after %d polls, want 10000", got)
	}
}

func TestResetKeepsWriteLive(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))
	s.Reset()

	// Write stays bound, so no countdown is armed; but with polling
	// masked it never progresses either.
	s.WriteSector(0, 0, 0, 0, false)
	pollN(s, 30000)
	if fdc.notFound != 0 {
		t.Fatal("bound write armed the not-found countdown")
	}
	if fdc.finished != 0 {
		t.Fatal("write completed with polling masked")
	}
}

func TestResetSelectsDriveZero(t *testing.T) {
	s, _ := newTestSystem()
	s.Select(1)
	s.Reset()
	if s.Selected() != 0 {
		t.Fatal("reset did not select drive 0")
	}
}

func TestResetThenCloseReleasesMedia(t *testing.T) {
	s, _ := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))
	s.Reset()
	s.Close(0)
	if s.Loaded(0) {
		t.Fatal("close after reset left media mounted")
	}
}

func TestMotorSpinsDownAfterIdle(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))

	s.ReadSector(0, 0, 0, 0, false)
	pollN(s, 49999)
	if fdc.spunDown != 0 {
		t.Fatal("motor stopped early")
	}
	s.Poll()
	if fdc.spunDown != 1 {
		t.Fatal("motor did not stop after the idle timeout")
	}
	pollN(s, 100000)
	if fdc.spunDown != 1 {
		t.Fatalf("spin-down fired again: %d", fdc.spunDown)
	}

	// A fresh command spins the motor back up.
	s.ReadSector(0, 0, 0, 0, false)
	pollN(s, 50000)
	if fdc.spunDown != 2 {
		t.Fatalf("second spin-down count = %d, want 2", fdc.spunDown)
	}
}

func TestCloseSpinsDownSelectedDrive(t *testing.T) {
	s, fdc := newTestSystem()
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))
	s.ReadSector(0, 0, 0, 0, false)
	s.Close(0)
	if fdc.spunDown != 1 {
		t.Fatal("closing spinning media did not stop the motor")
	}
	if s.Loaded(0) {
		t.Fatal("media still mounted after close")
	}
	s.Close(0) // idempotent
	if fdc.spunDown != 1 {
		t.Fatal("closing an empty drive stopped the motor again")
	}
}

func TestChangedFlag(t *testing.T) {
	s, _ := newTestSystem()
	if s.Changed(0) {
		t.Fatal("changed set before any load")
	}
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))
	if !s.Changed(0) {
		t.Fatal("load did not set changed")
	}
	s.AckChanged(0)
	if s.Changed(0) {
		t.Fatal("ack did not clear changed")
	}
	s.Close(0)
	if !s.Changed(0) {
		t.Fatal("close did not set changed")
	}
}

func TestEjectLabels(t *testing.T) {
	s, _ := newTestSystem()
	d := &testDisplay{}
	s.Display = d

	path := makeImage(t, "a.ssd", 80*10*256)
	loadImage(t, s, 0, path)
	want := []string{"0:", "0:" + path}
	if len(d.labels) != 2 || d.labels[0] != want[0] || d.labels[1] != want[1] {
		t.Fatalf("labels = %v, want %v", d.labels, want)
	}

	// Input errors clear the label and stop.
	d.labels = nil
	if err := s.Load(0, ""); err != ErrNoFilename {
		t.Fatalf("err = %v, want ErrNoFilename", err)
	}
	if len(d.labels) != 1 || d.labels[0] != "0:" {
		t.Fatalf("labels after empty path = %v", d.labels)
	}
}

func TestWriteProtectedSurface(t *testing.T) {
	s, _ := newTestSystem()
	if s.WriteProtected(0) {
		t.Fatal("empty drive reports protection")
	}
	loadImage(t, s, 0, makeImage(t, "a.ssd", 80*10*256))
	if s.WriteProtected(0) {
		t.Fatal("writable image reports protection")
	}
}

func TestSystemsAreIndependent(t *testing.T) {
	s1, fdc1 := newTestSystem()
	s2, fdc2 := newTestSystem()
	s1.ReadSector(0, 0, 0, 0, false)
	pollN(s1, 10000)
	pollN(s2, 10000)
	if fdc1.notFound != 1 {
		t.Fatal("first system countdown broken")
	}
	if fdc2.notFound != 0 {
		t.Fatal("countdown leaked across systems")
	}
}

func TestCRC16KnownVector(t *testing.T) {
	if got := crc16([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("crc16 = %#04x, want 0x29b1", got)
	}
}

func TestSizeCode(t *testing.T) {
	for _, tc := range []struct {
		size int
		code uint8
	}{{128, 0}, {256, 1}, {512, 2}, {1024, 3}} {
		if got := sizeCode(tc.size); got != tc.code {
			t.Fatalf("sizeCode(%d) = %d, want %d", tc.size, got, tc.code)
		}
	}
}
