//go:build darwin

package main

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// mountedVolumes lists everything the host has mounted, via getfsstat.
// The first call sizes the buffer, the second fills it.
func mountedVolumes() []mountedVol {
	var out []mountedVol
	n, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil || n <= 0 {
		return out
	}
	buf := make([]unix.Statfs_t, n)
	if _, err = unix.Getfsstat(buf, unix.MNT_NOWAIT); err != nil {
		return out
	}
	for _, st := range buf {
		out = append(out, mountedVol{
			MountPoint: filepath.Clean(cString(st.Mntonname[:])),
			Device:     cString(st.Mntfromname[:]),
			FSType:     cString(st.Fstypename[:]),
			SizeBytes:  int64(st.Blocks) * int64(st.Bsize),
		})
	}
	return out
}

func cString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
