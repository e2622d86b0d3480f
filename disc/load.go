package disc

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// sizeUnknown marks registry entries whose image size is not fixed.
const sizeUnknown = -1

// loader is one image-format registry entry. size is the byte length of a
// freshly created image, sizeUnknown for self-describing containers.
type loader struct {
	ext  string
	load func(s *System, drive int, path string) (media, error)
	size int64
}

// loaders is the format registry, matched case-insensitively on extension.
var loaders = []loader{
	{".ssd", loadSSD, dfsTracks * dfsSectors * dfsSectorSize},
	{".dsd", loadDSD, 2 * dfsTracks * dfsSectors * dfsSectorSize},
	{".adf", loadADF, adfsTracks * adfsSectors * adfsSectorSize},
	{".adl", loadADL, 2 * adfsTracks * adfsSectors * adfsSectorSize},
	{".fdi", loadFDI, sizeUnknown},
}

// Load mounts the image at path into a drive slot, selecting the handler by
// filename extension and falling back to a byte-size probe. On error the
// drive keeps whatever it held before.
func (s *System) Load(drive int, path string) error {
	if drive < 0 || drive >= NumDrives {
		log.WithField("drive", drive).Warn("disc load: bad drive")
		return ErrBadDrive
	}
	s.setEjectText(drive, "")
	if path == "" {
		log.WithField("drive", drive).Warn("disc load: no filename")
		return ErrNoFilename
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		log.WithFields(log.Fields{"drive": drive, "path": path}).
			Warn("disc load: no extension")
		return ErrNoExtension
	}
	s.setEjectText(drive, path)

	for _, l := range loaders {
		if ext == l.ext {
			return s.mount(drive, l.load, path)
		}
	}

	// No extension match, so guess from the image size.
	size, err := probeSize(path)
	if err != nil {
		log.WithFields(log.Fields{"drive": drive, "path": path}).
			Warnf("disc load: %v", err)
		return ErrUnknownFormat
	}
	switch {
	case size == 800*1024: // 800K ADFS: 80*2*5*1024
		return s.mount(drive, loadADF, path)
	case size == 640*1024: // 640K ADFS: 80*2*16*256
		return s.mount(drive, loadADL, path)
	case size == 720*1024: // 720K DOS: 80*2*9*512
		return s.mount(drive, dosLoader(false), path)
	case size == 360*1024: // 360K DOS: 40*2*9*512
		return s.mount(drive, dosLoader(true), path)
	case size <= 200*1024: // 200K DFS: 80*1*10*256
		return s.mount(drive, loadSSD, path)
	case size <= 400*1024: // 400K DFS: 80*2*10*256
		return s.mount(drive, loadDSD, path)
	}
	log.WithFields(log.Fields{"drive": drive, "path": path, "size": size}).
		Warn("disc load: unrecognised image")
	return ErrUnknownFormat
}

// mount builds the new media first, so a failed load keeps the old media,
// then swaps it into the slot and releases the old backing file.
func (s *System) mount(drive int, load func(*System, int, string) (media, error), path string) error {
	m, err := load(s, drive, path)
	if err != nil {
		log.WithFields(log.Fields{"drive": drive, "path": path}).
			Warnf("disc load: %v", err)
		return err
	}
	s.Close(drive)
	d := &s.drives[drive]
	d.media = m
	d.ops = opAll
	d.changed = true
	log.WithFields(log.Fields{
		"drive":  drive,
		"path":   path,
		"format": m.info().Format,
	}).Debug("disc loaded")
	return nil
}

// probeSize reports the byte size of an image file or block device.
func probeSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ImageSize(f)
}
