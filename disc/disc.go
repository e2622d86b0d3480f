// Package disc emulates the Acorn Electron's floppy disc layer: two drive
// slots, pluggable image-format handlers, and the timed status callbacks the
// disc-controller emulation depends on.
//
// The host timing loop calls Poll once per emulated tick; the controller
// emulation calls the command entry points (Seek, ReadSector, WriteSector,
// ReadAddress, Format) and receives results through the FDC callback
// interface as the operation progresses across subsequent ticks.
package disc

import (
	log "github.com/sirupsen/logrus"
)

// NumDrives is the number of physical drive slots.
const NumDrives = 2

// Countdown and pacing durations in poll ticks. Real hardware retries a
// failing command for several disc rotations before reporting not-found,
// and guest software depends on that delay.
const (
	notFoundEmpty = 10000 // command dispatched with no media operation bound
	notFoundMedia = 500   // media present but the sector/track/side is missing
	spindownIdle  = 50000 // polls of inactivity before the motor stops
	pollsPerByte  = 16    // transfer pacing: one data byte per this many polls
)

// FDC is the callback contract of the disc-controller chip emulation. The
// subsystem holds a non-owning reference and invokes these as operations
// progress. GetData is the pull side of a write: it returns the next byte
// to put on the disc, or -1 when the controller has none ready.
type FDC interface {
	Data(b uint8)
	SpinDown()
	FinishRead()
	NotFound()
	DataCRCError()
	HeaderCRCError()
	WriteProtect()
	GetData(last bool) int
}

// Noise receives signed head-step deltas for drive-noise output. Optional;
// a nil Noise is ignored.
type Noise interface {
	Seek(delta int)
}

// Display receives the mounted-image label for each drive. Optional.
type Display interface {
	SetEjectText(drive int, label string)
}

// opSet records which media operations a drive currently has live. A loaded
// drive has all of them; Reset masks a subset without unloading.
type opSet uint8

const (
	opPoll opSet = 1 << iota
	opSeek
	opReadSector
	opWriteSector
	opReadAddress
	opFormat

	opAll = opPoll | opSeek | opReadSector | opWriteSector | opReadAddress | opFormat
)

// media is the per-format operation set bound to a drive at load time.
// Implementations live in image.go (plain sector arrays) and fdi.go.
type media interface {
	seek(track int)
	readSector(sector, track, side int, density bool)
	writeSector(sector, track, side int, density bool)
	readAddress(track, side int, density bool)
	format(track, side int, density bool)
	poll()
	close() error
	protected() bool
	info() MediaInfo
}

// drive is one physical drive slot.
type drive struct {
	media   media
	ops     opSet
	track   int  // last seek target, kept even with no media
	changed bool // media inserted or removed since last acknowledged
}

// Geometry describes a mounted image's layout. Sectors and SectorSize are
// zero when they vary track to track.
type Geometry struct {
	Tracks      int
	Sides       int
	Sectors     int // per track and side
	SectorSize  int
	FirstSector int // lowest sector ID on each track
}

// MediaInfo reports what a drive currently holds. DoubleStepped means the
// head steps twice per media track (40-track media in an 80-track drive).
type MediaInfo struct {
	Format        string
	Path          string
	Geometry      Geometry
	DoubleDensity bool
	DoubleStepped bool
	Protected     bool
}

// System is the disc subsystem state: the drive slots, the selected drive,
// and the shared not-found countdown. Create one per emulated machine;
// independent Systems share nothing.
type System struct {
	fdc     FDC
	Noise   Noise   // optional head-noise collaborator
	Display Display // optional eject-label collaborator

	drives   [NumDrives]drive
	cur      int
	notFound int

	motor bool
	idle  int
}

// NewSystem returns a subsystem wired to the given controller callbacks.
func NewSystem(fdc FDC) *System {
	return &System{fdc: fdc}
}

// Select sets the drive addressed by the controller's select line; Poll
// runs against this drive. Out-of-range values are ignored.
func (s *System) Select(drive int) {
	if drive >= 0 && drive < NumDrives {
		s.cur = drive
	}
}

// Selected returns the currently selected drive index.
func (s *System) Selected() int { return s.cur }

// Reset is the controller-reset hook. It masks the poll, seek and
// read-sector operations on both drives and selects drive 0. Media stays
// mounted and its write/read-address/format operations stay live; a drive
// closed after a reset still releases its backing file.
func (s *System) Reset() {
	for d := range s.drives {
		s.drives[d].ops &^= opPoll | opSeek | opReadSector
	}
	s.cur = 0
}

// Poll advances one emulated tick: the selected drive's rotation first,
// then the shared not-found countdown, then the motor timeout.
func (s *System) Poll() {
	d := &s.drives[s.cur]
	if d.media != nil && d.ops&opPoll != 0 {
		d.media.poll()
	}
	if s.notFound > 0 {
		s.notFound--
		if s.notFound == 0 {
			s.fdc.NotFound()
		}
	}
	if s.motor {
		s.idle++
		if s.idle >= spindownIdle {
			s.motor = false
			s.fdc.SpinDown()
		}
	}
}

// armNotFound schedules the not-found callback. Re-arming restarts the
// delay; the last failing command wins.
func (s *System) armNotFound(ticks int) {
	s.notFound = ticks
}

func (s *System) spinUp() {
	s.motor = true
	s.idle = 0
}

// Seek steps the head. The signed track delta always reaches the Noise
// collaborator and the last-seek track always updates, media or not.
func (s *System) Seek(drive, track int) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media != nil && d.ops&opSeek != 0 {
		s.spinUp()
		d.media.seek(track)
	}
	if s.Noise != nil {
		s.Noise.Seek(track - d.track)
	}
	d.track = track
}

// ReadSector asks a drive to stream one sector through FDC.Data. With no
// read operation bound, the not-found countdown is armed instead.
func (s *System) ReadSector(drive, sector, track, side int, density bool) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media != nil && d.ops&opReadSector != 0 {
		s.spinUp()
		d.media.readSector(sector, track, side, density)
		return
	}
	s.armNotFound(notFoundEmpty)
}

// WriteSector asks a drive to accept one sector, pulling bytes through
// FDC.GetData. With no write operation bound, the countdown is armed.
func (s *System) WriteSector(drive, sector, track, side int, density bool) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media != nil && d.ops&opWriteSector != 0 {
		s.spinUp()
		d.media.writeSector(sector, track, side, density)
		return
	}
	s.armNotFound(notFoundEmpty)
}

// ReadAddress asks a drive to stream the next sector ID field under the
// head: track, side, sector, size code and the ID CRC, six bytes in all.
func (s *System) ReadAddress(drive, track, side int, density bool) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media != nil && d.ops&opReadAddress != 0 {
		s.spinUp()
		d.media.readAddress(track, side, density)
		return
	}
	s.armNotFound(notFoundEmpty)
}

// Format rewrites every sector of the addressed track with zeros.
func (s *System) Format(drive, track, side int, density bool) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media != nil && d.ops&opFormat != 0 {
		s.spinUp()
		d.media.format(track, side, density)
		return
	}
	s.armNotFound(notFoundEmpty)
}

// Close ejects a drive's media, flushing and releasing its backing file.
// Closing an empty drive is a no-op.
func (s *System) Close(drive int) {
	if drive < 0 || drive >= NumDrives {
		return
	}
	d := &s.drives[drive]
	if d.media == nil {
		return
	}
	if err := d.media.close(); err != nil {
		log.WithField("drive", drive).Warnf("closing disc: %v", err)
	}
	if s.motor && s.cur == drive {
		s.motor = false
		s.fdc.SpinDown()
	}
	d.media = nil
	d.ops = 0
	d.changed = true
}

// Loaded reports whether a drive holds media.
func (s *System) Loaded(drive int) bool {
	return drive >= 0 && drive < NumDrives && s.drives[drive].media != nil
}

// MediaInfo describes the mounted image, if any.
func (s *System) MediaInfo(drive int) (MediaInfo, bool) {
	if !s.Loaded(drive) {
		return MediaInfo{}, false
	}
	return s.drives[drive].media.info(), true
}

// WriteProtected reports the write-protect state of a drive's media.
func (s *System) WriteProtected(drive int) bool {
	return s.Loaded(drive) && s.drives[drive].media.protected()
}

// Changed reports whether media has been inserted or removed since the
// last AckChanged.
func (s *System) Changed(drive int) bool {
	return drive >= 0 && drive < NumDrives && s.drives[drive].changed
}

// AckChanged clears a drive's media-changed flag.
func (s *System) AckChanged(drive int) {
	if drive >= 0 && drive < NumDrives {
		s.drives[drive].changed = false
	}
}

func (s *System) setEjectText(drive int, label string) {
	if s.Display != nil {
		s.Display.SetEjectText(drive, label)
	}
}
