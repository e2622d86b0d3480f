//go:build windows

package disc

import (
	"io"
	"os"
)

// ImageSize reports the byte size of an image. Raw device probing is not
// wired on Windows; regular files and anything seekable only.
func ImageSize(f *os.File) (int64, error) {
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		return fi.Size(), nil
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, _ = f.Seek(0, io.SeekStart)
		return size, nil
	}
	return 0, os.ErrInvalid
}
