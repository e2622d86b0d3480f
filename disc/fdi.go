package disc

import (
	"encoding/binary"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// FDI is a self-describing container: a 14-byte header, per-track sector
// descriptor lists, then the raw sector data. Geometry comes entirely from
// the file, and sector counts may differ track to track.
//
// Descriptor flag bits:
const (
	fdiNoData  = 0x80 // sector has an ID field but no data field
	fdiDeleted = 0x40 // deleted data mark; data is delivered regardless
	// bits 0-5: data CRC is good for the sector's size code
)

// fdiMaxCyls bounds the header's cylinder count; anything beyond what an
// 80-track drive can step to (plus the usual oversized dumps) is garbage.
const fdiMaxCyls = 86

type fdiSector struct {
	id    [4]byte // C, H, R, N as recorded in the descriptor
	flags uint8
	data  []byte // slice into the image; nil when fdiNoData is set
	off   int64  // file offset of data, for write-back
	badID bool   // recorded C disagrees with the physical cylinder
}

type fdiMedia struct {
	sys   *System
	drive int
	f     *os.File
	path  string
	img   []byte

	cyls   int
	heads  int
	tracks [][]fdiSector // cylinder-major, head-minor

	writeProt bool
	curTrack  int

	op    transferOp
	sec   *fdiSector
	fi    int // format: index into the current track list
	fside int // format: commanded side
	pos   int
	pace  int
	idam  int
	hdr   [6]byte
}

func loadFDI(s *System, drive int, path string) (media, error) {
	f, prot, err := openImage(path)
	if err != nil {
		return nil, err
	}
	m, err := parseFDI(s, drive, f, path, prot)
	if err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func parseFDI(s *System, drive int, f *os.File, path string, prot bool) (*fdiMedia, error) {
	img, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(img) < 14 || string(img[0:3]) != "FDI" {
		return nil, ErrCorruptImage
	}
	cyls := int(binary.LittleEndian.Uint16(img[4:]))
	heads := int(binary.LittleEndian.Uint16(img[6:]))
	dataOff := int(binary.LittleEndian.Uint16(img[10:]))
	extra := int(binary.LittleEndian.Uint16(img[12:]))
	if cyls < 1 || cyls > fdiMaxCyls || heads < 1 || heads > 2 {
		return nil, ErrCorruptImage
	}

	pos := 14 + extra
	tracks := make([][]fdiSector, cyls*heads)
	for t := range tracks {
		if pos+7 > len(img) {
			return nil, ErrCorruptImage
		}
		trackOff := int(binary.LittleEndian.Uint32(img[pos:]))
		count := int(img[pos+6])
		pos += 7
		secs := make([]fdiSector, 0, count)
		for i := 0; i < count; i++ {
			if pos+7 > len(img) {
				return nil, ErrCorruptImage
			}
			var sec fdiSector
			copy(sec.id[:], img[pos:pos+4])
			sec.flags = img[pos+4]
			secOff := int(binary.LittleEndian.Uint16(img[pos+5:]))
			pos += 7
			if sec.id[3] > 5 {
				return nil, ErrCorruptImage
			}
			sec.badID = int(sec.id[0]) != t/heads
			if sec.flags&fdiNoData == 0 {
				dlen := 128 << sec.id[3]
				off := dataOff + trackOff + secOff
				if off < 0 || off+dlen > len(img) {
					return nil, ErrCorruptImage
				}
				sec.data = img[off : off+dlen]
				sec.off = int64(off)
			}
			secs = append(secs, sec)
		}
		tracks[t] = secs
	}

	return &fdiMedia{
		sys:       s,
		drive:     drive,
		f:         f,
		path:      path,
		img:       img,
		cyls:      cyls,
		heads:     heads,
		tracks:    tracks,
		writeProt: prot || img[3] != 0,
	}, nil
}

func (m *fdiMedia) trackList(side int) []fdiSector {
	return m.tracks[m.curTrack*m.heads+side]
}

// find locates the descriptor for a sector ID on the current track. The
// density parameter is not consulted: the container records its own
// encoding and dumps of both densities circulate.
func (m *fdiMedia) find(sector, track, side int) *fdiSector {
	if side < 0 || side >= m.heads || track != m.curTrack {
		return nil
	}
	list := m.trackList(side)
	for i := range list {
		if int(list[i].id[2]) == sector {
			return &list[i]
		}
	}
	return nil
}

func (m *fdiMedia) seek(track int) {
	if track < 0 {
		track = 0
	}
	if track > m.cyls-1 {
		track = m.cyls - 1
	}
	m.curTrack = track
}

func (m *fdiMedia) readSector(sector, track, side int, density bool) {
	sec := m.find(sector, track, side)
	switch {
	case sec == nil || sec.flags&fdiNoData != 0:
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
	case sec.badID:
		m.op = xferBadID
	default:
		m.sec = sec
		m.op = xferRead
	}
	m.pos = 0
	m.pace = 0
}

func (m *fdiMedia) writeSector(sector, track, side int, density bool) {
	if m.writeProt {
		m.op = xferIdle
		m.sys.fdc.WriteProtect()
		return
	}
	sec := m.find(sector, track, side)
	switch {
	case sec == nil || sec.flags&fdiNoData != 0:
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
	case sec.badID:
		m.op = xferBadID
	default:
		m.sec = sec
		m.op = xferWrite
	}
	m.pos = 0
	m.pace = 0
}

func (m *fdiMedia) readAddress(track, side int, density bool) {
	if side < 0 || side >= m.heads || len(m.trackList(side)) == 0 {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	list := m.trackList(side)
	m.sec = &list[m.idam%len(list)]
	m.idam++
	crc := crc16(m.sec.id[:])
	copy(m.hdr[:], m.sec.id[:])
	m.hdr[4] = uint8(crc >> 8)
	m.hdr[5] = uint8(crc)
	m.op = xferAddress
	m.pos = 0
	m.pace = 0
}

func (m *fdiMedia) format(track, side int, density bool) {
	if m.writeProt {
		m.op = xferIdle
		m.sys.fdc.WriteProtect()
		return
	}
	if side < 0 || side >= m.heads || track != m.curTrack || len(m.trackList(side)) == 0 {
		m.op = xferIdle
		m.sys.armNotFound(notFoundMedia)
		return
	}
	m.sec = nil
	m.fi = -1
	m.fside = side
	m.op = xferFormat
	m.pos = 0
	m.pace = 0
	m.formatAdvance()
}

// formatAdvance moves the format pass to the next descriptor that carries
// data. Reports false when the track is exhausted.
func (m *fdiMedia) formatAdvance() bool {
	list := m.trackList(m.fside)
	for m.fi++; m.fi < len(list); m.fi++ {
		if list[m.fi].flags&fdiNoData == 0 {
			m.sec = &list[m.fi]
			m.pos = 0
			return true
		}
	}
	m.sec = nil
	return false
}

func (m *fdiMedia) poll() {
	if m.op == xferIdle {
		return
	}
	m.pace++
	if m.pace < pollsPerByte {
		return
	}
	m.pace = 0

	switch m.op {
	case xferBadID:
		m.op = xferIdle
		m.sys.fdc.HeaderCRCError()

	case xferRead:
		m.sys.fdc.Data(m.sec.data[m.pos])
		m.pos++
		if m.pos == len(m.sec.data) {
			m.op = xferIdle
			if m.sec.flags&(1<<m.sec.id[3]) != 0 {
				m.sys.fdc.FinishRead()
			} else {
				m.sys.fdc.DataCRCError()
			}
		}

	case xferWrite:
		c := m.sys.fdc.GetData(m.pos == len(m.sec.data)-1)
		if c < 0 {
			c = 0
		}
		m.sec.data[m.pos] = uint8(c)
		m.pos++
		if m.pos == len(m.sec.data) {
			m.op = xferIdle
			m.flush(m.sec)
			m.sys.fdc.FinishRead()
		}

	case xferAddress:
		m.sys.fdc.Data(m.hdr[m.pos])
		m.pos++
		if m.pos == len(m.hdr) {
			m.op = xferIdle
			if m.sec.badID {
				m.sys.fdc.HeaderCRCError()
			} else {
				m.sys.fdc.FinishRead()
			}
		}

	case xferFormat:
		if m.sec == nil {
			m.op = xferIdle
			m.sys.fdc.FinishRead()
			return
		}
		m.sec.data[m.pos] = 0
		m.pos++
		if m.pos == len(m.sec.data) {
			m.flush(m.sec)
			if !m.formatAdvance() {
				m.op = xferIdle
				m.sys.fdc.FinishRead()
			}
		}
	}
}

func (m *fdiMedia) flush(sec *fdiSector) {
	if _, err := m.f.WriteAt(sec.data, sec.off); err != nil {
		log.WithFields(log.Fields{"drive": m.drive, "path": m.path}).
			Warnf("disc write failed: %v", err)
	}
}

func (m *fdiMedia) close() error {
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

func (m *fdiMedia) protected() bool { return m.writeProt }

func (m *fdiMedia) info() MediaInfo {
	return MediaInfo{
		Format: "FDI",
		Path:   m.path,
		Geometry: Geometry{
			Tracks: m.cyls,
			Sides:  m.heads,
		},
		DoubleDensity: true,
		Protected:     m.writeProt,
	}
}
