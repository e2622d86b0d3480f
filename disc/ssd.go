package disc

// DFS geometry: 80 tracks of ten 256-byte sectors per side, FM encoding.
// SSD images carry one side, DSD two, interleaved track by track.
const (
	dfsTracks     = 80
	dfsSectors    = 10
	dfsSectorSize = 256
)

func loadSSD(s *System, drive int, path string) (media, error) {
	return loadDFS(s, drive, path, 1)
}

func loadDSD(s *System, drive int, path string) (media, error) {
	return loadDFS(s, drive, path, 2)
}

func loadDFS(s *System, drive int, path string, sides int) (media, error) {
	f, prot, err := openImage(path)
	if err != nil {
		return nil, err
	}
	format := "SSD"
	if sides == 2 {
		format = "DSD"
	}
	m := &imageMedia{
		sys:       s,
		drive:     drive,
		f:         f,
		path:      path,
		format:    format,
		tracks:    dfsTracks,
		sides:     sides,
		sectors:   dfsSectors,
		secSize:   dfsSectorSize,
		writeProt: prot,
	}
	m.buf = make([]byte, m.secSize)
	return m, nil
}
