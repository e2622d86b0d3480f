package disc

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// adfsBoot carries the format-dependent bytes of a fresh ADFS image: the
// sector total / free-length run at 0xFD and the map tail (disc id, boot
// option, checksum) at 0x1FB.
type adfsBoot struct {
	free [5]byte
	tail [5]byte
}

var (
	adfBoot = adfsBoot{
		free: [5]byte{0x05, 0x00, 0x0C, 0xF9, 0x04},
		tail: [5]byte{0x88, 0x39, 0x00, 0x03, 0xC1},
	}
	adlBoot = adfsBoot{
		free: [5]byte{0x0A, 0x00, 0x11, 0xF9, 0x09},
		tail: [5]byte{0x01, 0x84, 0x00, 0x03, 0x8A},
	}
)

// stampADFSBoot lays down the empty free-space map and root directory that
// ADFS expects on a fresh disc. DFS images need nothing: an all-zero
// catalogue is already empty.
func stampADFSBoot(img []byte, b adfsBoot) {
	img[0] = 7 // first free sector: past the map and root directory
	copy(img[0xFD:], b.free[:])
	copy(img[0x1FB:], b.tail[:])
	img[0x200] = 0
	copy(img[0x201:], "Hugo") // directory magic
	img[0x6CC] = 0x24         // root directory name '$'
	copy(img[0x6D6:], []byte{0x02, 0x00, 0x00, 0x24})
	copy(img[0x6FB:], "Hugo")
}

// Create writes a blank image for a fixed-size format and mounts it into
// the drive. Self-describing formats cannot be created this way.
func (s *System) Create(drive int, path string) error {
	if drive < 0 || drive >= NumDrives {
		log.WithField("drive", drive).Warn("disc create: bad drive")
		return ErrBadDrive
	}
	if path == "" {
		log.WithField("drive", drive).Warn("disc create: no filename")
		return ErrNoFilename
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		log.WithFields(log.Fields{"drive": drive, "path": path}).
			Warn("disc create: no extension")
		return ErrNoExtension
	}
	for _, l := range loaders {
		if ext != l.ext {
			continue
		}
		if l.size == sizeUnknown {
			log.WithFields(log.Fields{"drive": drive, "path": path}).
				Warn("disc create: format has no fixed size")
			return ErrVariableSize
		}
		img := make([]byte, l.size)
		switch ext {
		case ".adf":
			stampADFSBoot(img, adfBoot)
		case ".adl":
			stampADFSBoot(img, adlBoot)
		}
		if err := os.WriteFile(path, img, 0644); err != nil {
			log.WithFields(log.Fields{"drive": drive, "path": path}).
				Warnf("disc create: %v", err)
			return err
		}
		return s.Load(drive, path)
	}
	log.WithFields(log.Fields{"drive": drive, "path": path}).
		Warn("disc create: unrecognised extension")
	return ErrUnknownFormat
}
