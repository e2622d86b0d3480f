//go:build windows

package main

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const ioctlStorageGetDeviceNumber = 0x2D1080

type storageDeviceNumber struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

// normalizeDevicePath maps \\.\A: to \\.\PhysicalDriveN if possible.
// If mapping fails or the path is not a drive letter, it is returned
// unchanged, so plain image files pass straight through.
func normalizeDevicePath(p string) string {
	if len(p) < 6 || !strings.HasPrefix(p, `\\.\`) {
		return p
	}
	letter := p[4:5]
	if letter < "A" || letter > "Z" {
		return p
	}
	vol := `\\.\` + letter + `:`
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(vol),
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return p
	}
	defer windows.CloseHandle(h)

	k32 := windows.NewLazySystemDLL("kernel32.dll")
	deviceIoControl := k32.NewProc("DeviceIoControl")
	var out storageDeviceNumber
	var bytesReturned uint32
	r1, _, _ := deviceIoControl.Call(
		uintptr(h),
		ioctlStorageGetDeviceNumber,
		0, 0,
		uintptr(unsafe.Pointer(&out)), uintptr(unsafe.Sizeof(out)),
		uintptr(unsafe.Pointer(&bytesReturned)),
		0,
	)
	if r1 == 0 {
		return p
	}
	return fmt.Sprintf(`\\.\PhysicalDrive%d`, out.DeviceNumber)
}

func driveTypeString(t uint32) string {
	switch t {
	case 2:
		return "removable"
	case 3:
		return "fixed"
	case 4:
		return "network"
	case 5:
		return "cdrom"
	case 6:
		return "ramdisk"
	default:
		return "unknown"
	}
}

func getDriveType(root string) uint32 {
	k32 := windows.NewLazySystemDLL("kernel32.dll")
	proc := k32.NewProc("GetDriveTypeW")
	p, _ := windows.UTF16PtrFromString(root)
	r0, _, _ := proc.Call(uintptr(unsafe.Pointer(p)))
	return uint32(r0)
}

func getTotalBytes(root string) uint64 {
	k32 := windows.NewLazySystemDLL("kernel32.dll")
	proc := k32.NewProc("GetDiskFreeSpaceExW")
	p, _ := windows.UTF16PtrFromString(root)
	var total uint64
	_, _, _ = proc.Call(
		uintptr(unsafe.Pointer(p)),
		0,
		uintptr(unsafe.Pointer(&total)),
		0,
	)
	return total
}

func mountedVolumes() []mountedVol {
	out := []mountedVol{}
	for l := byte('A'); l <= byte('Z'); l++ {
		root := fmt.Sprintf(`%c:\`, l)
		typeCode := getDriveType(root)
		if typeCode == 0 || typeCode == 1 { // unknown or no root dir
			continue
		}
		out = append(out, mountedVol{
			MountPoint: root,
			Device:     fmt.Sprintf("%c:", l),
			FSType:     driveTypeString(typeCode),
			SizeBytes:  int64(getTotalBytes(root)),
		})
	}
	return out
}
