package disc

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// transferOp identifies the media operation in flight on a drive.
type transferOp int

const (
	xferIdle transferOp = iota
	xferRead
	xferWrite
	xferAddress
	xferFormat
	xferBadID // ID field under the head fails its CRC
)

// imageMedia drives a plain sector-array image file. All the fixed-geometry
// formats bind one of these; only the geometry parameters differ. Bytes live
// at ((track*sides + side) * sectors + (sector - base)) * secSize.
type imageMedia struct {
	sys    *System
	drive  int
	f      *os.File
	path   string
	format string

	tracks  int
	sides   int
	sectors int // per track and side
	secSize int
	base    int  // first sector ID on each track
	mfm     bool // double density
	dblStep bool // 40-track media in an 80-track drive

	writeProt bool
	curTrack  int // physical head position

	op     transferOp
	sector int
	side   int
	pos    int
	pace   int
	idam   int // rotating index for read-address
	buf    []byte
}

func (m *imageMedia) mediaTrack(track int) int {
	if m.dblStep {
		track /= 2
	}
	return track
}

func (m *imageMedia) offset(sector, track, side int) int64 {
	t := m.mediaTrack(track)
	return int64(((t*m.sides+side)*m.sectors + (sector - m.base)) * m.secSize)
}

// valid gates a sector command the way the drive would: the density must
// match the encoding, the side and sector must exist, and the head must
// already sit on the requested track.
func (m *imageMedia) valid(sector, track, side int, density bool) bool {
	if density != m.mfm || m.f == nil {
		return false
	}
	if side < 0 || side >= m.sides {
		return false
	}
	if track != m.curTrack || m.mediaTrack(track) >= m.tracks {
		return false
	}
	return sector >= m.base && sector < m.base+m.sectors
}

func (m *imageMedia) seek(track int) {
	max := m.tracks - 1
	if m.dblStep {
		max = m.tracks*2 - 1
	}
	if track < 0 {
		track = 0
	}
	if track > max {
		track = max
	}
	m.curTrack = track
}

func (m *imageMedia) readSector(sector, track, side int, density bool) {
	if !m.valid(sector, track, side, density) {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	// Short images answer with zeros past their end, so truncated dumps
	// still boot.
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.f.ReadAt(m.buf[:m.secSize], m.offset(sector, track, side))
	m.sector, m.side = sector, side
	m.op = xferRead
	m.pos = 0
	m.pace = 0
}

func (m *imageMedia) writeSector(sector, track, side int, density bool) {
	if m.writeProt {
		m.op = xferIdle
		m.sys.fdc.WriteProtect()
		return
	}
	if !m.valid(sector, track, side, density) {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	m.sector, m.side = sector, side
	m.op = xferWrite
	m.pos = 0
	m.pace = 0
}

// readAddress streams the ID field passing under the head: successive calls
// walk the sector interleave of the current track. The controller's track
// register is not consulted; the head reports whatever is really there.
func (m *imageMedia) readAddress(track, side int, density bool) {
	if density != m.mfm || side < 0 || side >= m.sides || m.f == nil {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	id := [4]byte{
		uint8(m.mediaTrack(m.curTrack)),
		uint8(side),
		uint8(m.base + m.idam%m.sectors),
		sizeCode(m.secSize),
	}
	m.idam++
	crc := crc16(id[:])
	copy(m.buf, id[:])
	m.buf[4] = uint8(crc >> 8)
	m.buf[5] = uint8(crc)
	m.side = side
	m.op = xferAddress
	m.pos = 0
	m.pace = 0
}

func (m *imageMedia) format(track, side int, density bool) {
	if m.writeProt {
		m.op = xferIdle
		m.sys.fdc.WriteProtect()
		return
	}
	if !m.valid(m.base, track, side, density) {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.sector, m.side = m.base, side
	m.op = xferFormat
	m.pos = 0
	m.pace = 0
}

func (m *imageMedia) poll() {
	if m.op == xferIdle {
		return
	}
	m.pace++
	if m.pace < pollsPerByte {
		return
	}
	m.pace = 0

	switch m.op {
	case xferRead:
		m.sys.fdc.Data(m.buf[m.pos])
		m.pos++
		if m.pos == m.secSize {
			m.op = xferIdle
			m.sys.fdc.FinishRead()
		}

	case xferWrite:
		c := m.sys.fdc.GetData(m.pos == m.secSize-1)
		if c < 0 {
			c = 0 // controller had no byte ready: data lost, zero goes down
		}
		m.buf[m.pos] = uint8(c)
		m.pos++
		if m.pos == m.secSize {
			m.op = xferIdle
			m.flush(m.buf[:m.secSize], m.offset(m.sector, m.curTrack, m.side))
			m.sys.fdc.FinishRead()
		}

	case xferAddress:
		m.sys.fdc.Data(m.buf[m.pos])
		m.pos++
		if m.pos == 6 {
			m.op = xferIdle
			m.sys.fdc.FinishRead()
		}

	case xferFormat:
		m.pos++
		if m.pos == m.secSize {
			m.pos = 0
			m.flush(m.buf[:m.secSize], m.offset(m.sector, m.curTrack, m.side))
			m.sector++
			if m.sector == m.base+m.sectors {
				m.op = xferIdle
				m.sys.fdc.FinishRead()
			}
		}
	}
}

func (m *imageMedia) flush(b []byte, off int64) {
	if _, err := m.f.WriteAt(b, off); err != nil {
		log.WithFields(log.Fields{"drive": m.drive, "path": m.path}).
			Warnf("disc write failed: %v", err)
	}
}

func (m *imageMedia) close() error {
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

func (m *imageMedia) protected() bool { return m.writeProt }

func (m *imageMedia) info() MediaInfo {
	return MediaInfo{
		Format: m.format,
		Path:   m.path,
		Geometry: Geometry{
			Tracks:      m.tracks,
			Sides:       m.sides,
			Sectors:     m.sectors,
			SectorSize:  m.secSize,
			FirstSector: m.base,
		},
		DoubleDensity: m.mfm,
		DoubleStepped: m.dblStep,
		Protected:     m.writeProt,
	}
}

// openImage opens a backing file read-write, falling back to read-only
// with the media treated as write-protected.
func openImage(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		return f, false, nil
	}
	f, err = os.Open(path)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// sizeCode maps a sector length to its ID-field size code (128 << n).
func sizeCode(size int) uint8 {
	n := uint8(0)
	for s := 128; s < size; s <<= 1 {
		n++
	}
	return n
}

// crc16 is the CCITT polynomial the controller stamps on ID fields.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
