//go:build !windows

package main

// normalizeDevicePath only rewrites Windows drive-letter paths; everywhere
// else the path is already the right one.
func normalizeDevicePath(p string) string { return p }
