//go:build !darwin && !windows

package main

// mountedVolumes has no portable implementation here; the devices command
// simply omits the volume table.
func mountedVolumes() []mountedVol { return nil }
