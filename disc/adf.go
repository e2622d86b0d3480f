package disc

// ADFS geometry: 80 tracks of sixteen 256-byte sectors per side, MFM
// encoding. ADF images carry one side, ADL two, interleaved. 800K media
// carries five 1024-byte sectors per side instead.
const (
	adfsTracks     = 80
	adfsSectors    = 16
	adfsSectorSize = 256

	adfsLargeSize = 800 * 1024
)

func loadADF(s *System, drive int, path string) (media, error) {
	f, prot, err := openImage(path)
	if err != nil {
		return nil, err
	}
	m := &imageMedia{
		sys:       s,
		drive:     drive,
		f:         f,
		path:      path,
		format:    "ADF",
		tracks:    adfsTracks,
		sides:     1,
		sectors:   adfsSectors,
		secSize:   adfsSectorSize,
		mfm:       true,
		writeProt: prot,
	}
	if size, err := ImageSize(f); err == nil && size == adfsLargeSize {
		m.format = "ADF 800K"
		m.sides = 2
		m.sectors = 5
		m.secSize = 1024
	}
	m.buf = make([]byte, m.secSize)
	return m, nil
}

func loadADL(s *System, drive int, path string) (media, error) {
	f, prot, err := openImage(path)
	if err != nil {
		return nil, err
	}
	m := &imageMedia{
		sys:       s,
		drive:     drive,
		f:         f,
		path:      path,
		format:    "ADL",
		tracks:    adfsTracks,
		sides:     2,
		sectors:   adfsSectors,
		secSize:   adfsSectorSize,
		mfm:       true,
		writeProt: prot,
	}
	m.buf = make([]byte, m.secSize)
	return m, nil
}

// dosLoader builds a loader for the PC formats reached through the size
// probe: 9 sectors of 512 bytes, two sides, 1-based sector IDs. dblStep
// mounts 40-track media behind an 80-track head.
func dosLoader(dblStep bool) func(*System, int, string) (media, error) {
	return func(s *System, drive int, path string) (media, error) {
		f, prot, err := openImage(path)
		if err != nil {
			return nil, err
		}
		tracks, format := 80, "DOS 720K"
		if dblStep {
			tracks, format = 40, "DOS 360K"
		}
		m := &imageMedia{
			sys:       s,
			drive:     drive,
			f:         f,
			path:      path,
			format:    format,
			tracks:    tracks,
			sides:     2,
			sectors:   9,
			secSize:   512,
			base:      1,
			mfm:       true,
			dblStep:   dblStep,
			writeProt: prot,
		}
		m.buf = make([]byte, m.secSize)
		return m, nil
	}
}
