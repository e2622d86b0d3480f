//go:build !windows

package disc

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// ImageSize reports the byte size of an image: regular files by stat, block
// devices by ioctl, so /dev/fd0-style paths mount like image files.
func ImageSize(f *os.File) (int64, error) {
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		return fi.Size(), nil
	}

	// Darwin and the BSDs: block count times block size.
	const (
		dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
		dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
	)
	var (
		blockSize  uint32
		blockCount uint64
	)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize)))
	if errno == 0 {
		_, _, errno = syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount)))
		if errno != 0 {
			return 0, fmt.Errorf("cannot get block count: %v", errno)
		}
		return int64(blockSize) * int64(blockCount), nil
	}

	// Linux: size in bytes directly.
	const blkGetSize64 = 0x80081272
	var sizeBytes uint64
	_, _, errno = syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), blkGetSize64, uintptr(unsafe.Pointer(&sizeBytes)))
	if errno != 0 {
		return 0, fmt.Errorf("cannot determine media size: %v", errno)
	}
	return int64(sizeBytes), nil
}
