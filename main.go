// elkulator.go
// Disc-image workbench for the Acorn Electron floppy subsystem.
// Cobra CLI + tcell fullscreen sector map. Every byte moves through the
// paced drive emulation, never straight off the file.
//
// Build:
//
//	go get github.com/spf13/cobra@v1
//	go get github.com/gdamore/tcell/v2
//	go build -o elkulator .
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uiopaubo/elkulator/disc"
	"github.com/uiopaubo/elkulator/discmap"
)

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func human(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%dM", b/(1024*1024))
	}
	if b >= 1024 {
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}

/* ===================== controller harness ===================== */

// Sector outcomes as the CLI reports them.
const (
	outcomeOK        = "ok"
	outcomeMissing   = "not found"
	outcomeBadData   = "data crc"
	outcomeBadHeader = "header crc"
	outcomeProtected = "write protected"
	outcomeStalled   = "stalled"
)

// pollBudget bounds one operation. The slowest case, a 10000-tick
// not-found on an empty drive, stays well inside it.
const pollBudget = 200000

// hostFDC is the controller stand-in the CLI drives the subsystem with: it
// buffers one operation's bytes and records the terminal callback.
type hostFDC struct {
	data    []byte
	feed    []byte
	feedPos int
	done    bool
	outcome string
}

func (c *hostFDC) Data(b uint8)    { c.data = append(c.data, b) }
func (c *hostFDC) SpinDown()       {}
func (c *hostFDC) FinishRead()     { c.done, c.outcome = true, outcomeOK }
func (c *hostFDC) NotFound()       { c.done, c.outcome = true, outcomeMissing }
func (c *hostFDC) DataCRCError()   { c.done, c.outcome = true, outcomeBadData }
func (c *hostFDC) HeaderCRCError() { c.done, c.outcome = true, outcomeBadHeader }
func (c *hostFDC) WriteProtect()   { c.done, c.outcome = true, outcomeProtected }

func (c *hostFDC) GetData(bool) int {
	if c.feedPos >= len(c.feed) {
		return -1
	}
	v := c.feed[c.feedPos]
	c.feedPos++
	return int(v)
}

func (c *hostFDC) reset() {
	c.data = c.data[:0]
	c.feedPos = 0
	c.done = false
	c.outcome = ""
}

// run polls the subsystem until the pending operation reports back.
func (c *hostFDC) run(sys *disc.System) string {
	for i := 0; i < pollBudget && !c.done; i++ {
		sys.Poll()
	}
	if !c.done {
		return outcomeStalled
	}
	return c.outcome
}

// mountScratch loads an image into a throwaway subsystem on drive 0.
func mountScratch(path string) (*disc.System, *hostFDC, disc.MediaInfo, error) {
	fdc := &hostFDC{}
	sys := disc.NewSystem(fdc)
	if err := sys.Load(0, path); err != nil {
		return nil, nil, disc.MediaInfo{}, err
	}
	info, _ := sys.MediaInfo(0)
	return sys, fdc, info, nil
}

// readSector runs one paced sector read and returns its outcome and bytes.
func readSector(sys *disc.System, fdc *hostFDC, sector, track, side int, mfm bool) (string, []byte) {
	sys.Seek(0, track)
	fdc.reset()
	sys.ReadSector(0, sector, track, side, mfm)
	out := fdc.run(sys)
	return out, append([]byte(nil), fdc.data...)
}

// readAddress runs one paced ID-field read.
func readAddress(sys *disc.System, fdc *hostFDC, track, side int, mfm bool) (string, []byte) {
	sys.Seek(0, track)
	fdc.reset()
	sys.ReadAddress(0, track, side, mfm)
	out := fdc.run(sys)
	return out, append([]byte(nil), fdc.data...)
}

// writeSector runs one paced sector write, feeding the controller's bytes.
func writeSector(sys *disc.System, fdc *hostFDC, sector, track, side int, mfm bool, data []byte) string {
	sys.Seek(0, track)
	fdc.reset()
	fdc.feed = data
	sys.WriteSector(0, sector, track, side, mfm)
	return fdc.run(sys)
}

// formatTrack runs one paced track format, wiping its sectors.
func formatTrack(sys *disc.System, fdc *hostFDC, track, side int, mfm bool) string {
	sys.Seek(0, track)
	fdc.reset()
	sys.Format(0, track, side, mfm)
	return fdc.run(sys)
}

/* ===================== sector sweep ===================== */

// sweepRow is one track side: the physical track to seek and the sector
// IDs to request there.
type sweepRow struct {
	track, side int
	sectors     []int
}

type sweepTotals struct {
	ok, bad, missing int
}

// planSweep enumerates every sector of the mounted image in head order.
// Fixed geometries expand directly; self-describing media is walked with
// read-address until the IDs repeat.
func planSweep(sys *disc.System, fdc *hostFDC, info disc.MediaInfo) []sweepRow {
	g := info.Geometry
	step := 1
	if info.DoubleStepped {
		step = 2
	}
	var rows []sweepRow
	for t := 0; t < g.Tracks; t++ {
		for side := 0; side < g.Sides; side++ {
			row := sweepRow{track: t * step, side: side}
			if g.Sectors > 0 {
				for n := 0; n < g.Sectors; n++ {
					row.sectors = append(row.sectors, g.FirstSector+n)
				}
			} else {
				row.sectors = discoverSectors(sys, fdc, row.track, side, info.DoubleDensity)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// discoverSectors walks the rotating ID fields of one track side until the
// first repeated sector number.
func discoverSectors(sys *disc.System, fdc *hostFDC, track, side int, mfm bool) []int {
	seen := make(map[int]bool)
	var ids []int
	for i := 0; i < 64; i++ {
		out, id := readAddress(sys, fdc, track, side, mfm)
		if (out != outcomeOK && out != outcomeBadHeader) || len(id) < 6 {
			break
		}
		r := int(id[2])
		if seen[r] {
			break
		}
		seen[r] = true
		ids = append(ids, r)
	}
	return ids
}

func sweepSummary(info disc.MediaInfo) []string {
	g := info.Geometry
	density := "FM"
	if info.DoubleDensity {
		density = "MFM"
	}
	prot := ""
	if info.Protected {
		prot = "  read-only"
	}
	lines := []string{
		fmt.Sprintf("Format: %-9s  Encoding: %-3s%s", info.Format, density, prot),
	}
	if g.Sectors > 0 {
		lines = append(lines, fmt.Sprintf("Tracks: %-3d  Sides: %d  Sectors/Track: %-2d  Bytes/Sector: %d",
			g.Tracks, g.Sides, g.Sectors, g.SectorSize))
	} else {
		lines = append(lines, fmt.Sprintf("Tracks: %-3d  Sides: %d  Sectors/Track: varies",
			g.Tracks, g.Sides))
	}
	return lines
}

func verifyPlain(sys *disc.System, fdc *hostFDC, info disc.MediaInfo, rows []sweepRow) (sweepTotals, error) {
	var tot sweepTotals
	for _, row := range rows {
		for _, sector := range row.sectors {
			out, _ := readSector(sys, fdc, sector, row.track, row.side, info.DoubleDensity)
			switch out {
			case outcomeOK:
				tot.ok++
			case outcomeBadData, outcomeBadHeader:
				tot.bad++
				fmt.Printf("  track %2d side %d sector %2d: %s\n", row.track, row.side, sector, out)
			default:
				tot.missing++
				fmt.Printf("  track %2d side %d sector %2d: %s\n", row.track, row.side, sector, out)
			}
		}
	}
	return tot, nil
}

func verifyWithUI(sys *disc.System, fdc *hostFDC, info disc.MediaInfo, rows []sweepRow) (sweepTotals, error) {
	var tot sweepTotals

	ui, err := discmap.New()
	if err != nil {
		return tot, fmt.Errorf("ui init: %w", err)
	}
	defer ui.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		ui.RequestStop()
	}()

	counts := make([]int, len(rows))
	total := 0
	for i, row := range rows {
		counts[i] = len(row.sectors)
		total += counts[i]
	}
	grid := discmap.NewGrid(counts)

	ui.SetTitle(fmt.Sprintf("VERIFY %s  %s", info.Format, filepath.Base(info.Path)))
	ui.SetSummary(sweepSummary(info))
	ui.SetLegend([]string{discmap.Legend() + "  |  Q to quit"})

	start := time.Now()
	done := 0
	for ri, row := range rows {
		for ci, sector := range row.sectors {
			if ui.IsStopped() {
				return tot, discmap.ErrInterrupted
			}
			out, _ := readSector(sys, fdc, sector, row.track, row.side, info.DoubleDensity)
			switch out {
			case outcomeOK:
				tot.ok++
				grid.Mark(ri, ci, discmap.OK)
			case outcomeBadData, outcomeBadHeader:
				tot.bad++
				grid.Mark(ri, ci, discmap.BadCRC)
			default:
				tot.missing++
				grid.Mark(ri, ci, discmap.Missing)
			}
			done++

			ui.SetStatus([]string{
				fmt.Sprintf("Read %d/%d   ok %d   bad %d   missing %d", done, total, tot.ok, tot.bad, tot.missing),
				fmt.Sprintf("Head: track %d side %d   elapsed %s", row.track, row.side, time.Since(start).Round(time.Second)),
			})
			lines, first := grid.Rows(ui.MapRows())
			for i := range lines {
				lines[i] = fmt.Sprintf("T%02d.%d %s", rows[first+i].track, rows[first+i].side, lines[i])
			}
			ui.SetMap(lines)
			ui.LayoutAndDraw()
		}
	}
	return tot, nil
}

func formatPlain(sys *disc.System, fdc *hostFDC, info disc.MediaInfo, rows []sweepRow) (sweepTotals, error) {
	var tot sweepTotals
	for _, row := range rows {
		out := formatTrack(sys, fdc, row.track, row.side, info.DoubleDensity)
		switch out {
		case outcomeOK:
			tot.ok += len(row.sectors)
		case outcomeProtected:
			return tot, fmt.Errorf("media is write protected")
		default:
			tot.missing += len(row.sectors)
			fmt.Printf("  track %2d side %d: %s\n", row.track, row.side, out)
		}
	}
	return tot, nil
}

func formatWithUI(sys *disc.System, fdc *hostFDC, info disc.MediaInfo, rows []sweepRow) (sweepTotals, error) {
	var tot sweepTotals

	ui, err := discmap.New()
	if err != nil {
		return tot, fmt.Errorf("ui init: %w", err)
	}
	defer ui.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		ui.RequestStop()
	}()

	counts := make([]int, len(rows))
	total := 0
	for i, row := range rows {
		counts[i] = len(row.sectors)
		total += counts[i]
	}
	grid := discmap.NewGrid(counts)

	ui.SetTitle(fmt.Sprintf("FORMAT %s  %s", info.Format, filepath.Base(info.Path)))
	ui.SetSummary(sweepSummary(info))
	ui.SetLegend([]string{discmap.Legend() + "  |  Q to quit"})

	start := time.Now()
	done := 0
	for ri, row := range rows {
		if ui.IsStopped() {
			return tot, discmap.ErrInterrupted
		}
		out := formatTrack(sys, fdc, row.track, row.side, info.DoubleDensity)
		state := discmap.OK
		switch out {
		case outcomeOK:
			tot.ok += len(row.sectors)
		case outcomeProtected:
			return tot, fmt.Errorf("media is write protected")
		default:
			tot.missing += len(row.sectors)
			state = discmap.Missing
		}
		for ci := range row.sectors {
			grid.Mark(ri, ci, state)
		}
		done += len(row.sectors)

		ui.SetStatus([]string{
			fmt.Sprintf("Formatted %d/%d sectors", done, total),
			fmt.Sprintf("Head: track %d side %d   elapsed %s", row.track, row.side, time.Since(start).Round(time.Second)),
		})
		lines, first := grid.Rows(ui.MapRows())
		for i := range lines {
			lines[i] = fmt.Sprintf("T%02d.%d %s", rows[first+i].track, rows[first+i].side, lines[i])
		}
		ui.SetMap(lines)
		ui.LayoutAndDraw()
	}
	return tot, nil
}

/* ===================== image inspection ===================== */

func probeFileSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return disc.ImageSize(f)
}

// printable maps control bytes to dots for terminal-safe display.
func printable(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			b[i] = '.'
		}
	}
	return string(b)
}

// printCatalogue decodes the filesystem header blocks reachable through
// the drive: the DFS catalogue or the ADFS boot region.
func printCatalogue(sys *disc.System, fdc *hostFDC, info disc.MediaInfo) {
	bootOpts := []string{"none", "*LOAD", "*RUN", "*EXEC"}
	switch info.Format {
	case "SSD", "DSD":
		out0, s0 := readSector(sys, fdc, 0, 0, 0, false)
		out1, s1 := readSector(sys, fdc, 1, 0, 0, false)
		if out0 != outcomeOK || out1 != outcomeOK || len(s0) < 8 || len(s1) < 8 {
			return
		}
		title := strings.TrimRight(string(s0[:8])+string(s1[:4]), " \x00")
		files := int(s1[5]) / 8
		opt := (s1[6] >> 4) & 3
		fmt.Printf("Title:    %q  cycle %02X\n", printable(title), s1[4])
		fmt.Printf("Files:    %d  boot option %d (%s)\n", files, opt, bootOpts[opt])
	case "ADF", "ADL", "ADF 800K":
		out0, s0 := readSector(sys, fdc, 0, 0, 0, true)
		out1, s1 := readSector(sys, fdc, 1, 0, 0, true)
		if out0 != outcomeOK || out1 != outcomeOK {
			return
		}
		region := append(s0, s1...)
		if len(region) < 0x200 {
			return
		}
		total := int(region[0xFC]) | int(region[0xFD])<<8 | int(region[0xFE])<<16
		opt := region[0x1FD] & 3
		fmt.Printf("ADFS:     %d sectors, boot option %d (%s), disc id %02X%02X\n",
			total, opt, bootOpts[opt], region[0x1FC], region[0x1FB])
	}
}

/* ===================== device discovery ===================== */

type deviceInfo struct {
	Path       string
	Compatible bool
	Reason     string
}

// mountedVol is one host-mounted volume; filled in per-OS.
type mountedVol struct {
	MountPoint string
	Device     string
	FSType     string
	SizeBytes  int64
}

func discoverDevices() ([]deviceInfo, error) {
	switch runtime.GOOS {
	case "darwin":
		return discoverDarwin()
	case "linux":
		return discoverLinux()
	case "windows":
		return discoverWindows()
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func discoverDarwin() ([]deviceInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	infos := []deviceInfo{}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "disk") && !strings.HasPrefix(name, "rdisk") {
			continue
		}
		path := filepath.Join("/dev", name)
		// Partitions carry an 's' followed by a digit (disk2s1).
		isPart := false
		for i := 1; i+1 < len(name); i++ {
			if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
				isPart = true
				break
			}
		}
		if isPart {
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "partition"})
		} else {
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		}
	}
	return infos, nil
}

func discoverLinux() ([]deviceInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	infos := []deviceInfo{}
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join("/dev", name)
		switch {
		case isLinuxFloppy(name):
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		case isWholeLinuxDevice(name):
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		case isPartitionLinux(name):
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "partition"})
		case strings.HasPrefix(name, "loop"):
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "loop device"})
		}
	}
	return infos, nil
}

// isLinuxFloppy matches the kernel floppy driver nodes fd0..fd7.
func isLinuxFloppy(name string) bool {
	return len(name) == 3 && strings.HasPrefix(name, "fd") && name[2] >= '0' && name[2] <= '7'
}

func isWholeLinuxDevice(name string) bool {
	if len(name) == 3 && (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && name[2] >= 'a' && name[2] <= 'z' {
		return true
	}
	if strings.HasPrefix(name, "nvme") && strings.Contains(name, "n") && !strings.Contains(name, "p") {
		return true
	}
	if strings.HasPrefix(name, "mmcblk") && !strings.Contains(name[6:], "p") {
		return true
	}
	return false
}

func isPartitionLinux(name string) bool {
	if (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && len(name) >= 4 {
		last := name[len(name)-1]
		if last >= '0' && last <= '9' {
			return true
		}
	}
	if strings.HasPrefix(name, "nvme") && strings.Contains(name, "p") {
		return true
	}
	if strings.HasPrefix(name, "mmcblk") && strings.Contains(name[6:], "p") {
		return true
	}
	return false
}

func discoverWindows() ([]deviceInfo, error) {
	infos := []deviceInfo{}
	for i := 0; i < 32; i++ {
		path := fmt.Sprintf(`\\.\PhysicalDrive%d`, i)
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		} else if i < 4 {
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "not accessible"})
		}
	}
	return infos, nil
}

// mediaTypeBySize names the floppy sizes this tool works with.
func mediaTypeBySize(size int64) string {
	switch size {
	case 200 * 1024:
		return "200K DFS floppy"
	case 400 * 1024:
		return "400K DFS floppy"
	case 320 * 1024:
		return "320K ADFS floppy"
	case 640 * 1024:
		return "640K ADFS floppy"
	case 800 * 1024:
		return "800K ADFS floppy"
	case 360 * 1024:
		return "360K DOS floppy"
	case 720 * 1024:
		return "720K DOS floppy"
	case 1440 * 1024:
		return "1.44M floppy"
	default:
		return ""
	}
}

/* ===================== CLI ===================== */

func main() {
	root := &cobra.Command{
		Use:   "elkulator",
		Short: "Acorn Electron disc-image workbench",
		Long:  "Create, inspect and read-verify Electron disc images (SSD/DSD/ADF/ADL/FDI) through the emulated drive path",
	}
	var verbose bool
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		log.SetLevel(log.WarnLevel)
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	}

	newCmd := &cobra.Command{
		Use:   "new <image.(ssd|dsd|adf|adl)>",
		Short: "Create a blank, formatted disc image",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := normalizeDevicePath(args[0])
			fdc := &hostFDC{}
			sys := disc.NewSystem(fdc)
			if err := sys.Create(0, path); err != nil {
				return err
			}
			defer sys.Close(0)
			info, _ := sys.MediaInfo(0)
			g := info.Geometry
			fmt.Printf("%s: %s, %d tracks x %d sides x %d sectors x %d bytes\n",
				path, info.Format, g.Tracks, g.Sides, g.Sectors, g.SectorSize)
			return nil
		},
	}
	root.AddCommand(newCmd)

	var formatForce, formatNoUI bool
	formatCmd := &cobra.Command{
		Use:   "format <image>",
		Short: "Wipe every track through the drive's format operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := normalizeDevicePath(args[0])
			if fi, err := os.Stat(path); err == nil && !fi.Mode().IsRegular() && !formatForce {
				return fmt.Errorf("--force is required for device operations")
			}
			sys, fdc, info, err := mountScratch(path)
			if err != nil {
				return err
			}
			defer sys.Close(0)
			if info.Protected {
				return fmt.Errorf("media is write protected")
			}
			rows := planSweep(sys, fdc, info)

			var tot sweepTotals
			if formatNoUI {
				tot, err = formatPlain(sys, fdc, info, rows)
			} else {
				tot, err = formatWithUI(sys, fdc, info, rows)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d sectors wiped\n", filepath.Base(path), tot.ok)
			return nil
		},
	}
	formatCmd.Flags().BoolVar(&formatForce, "force", false, "required when the target is a device")
	formatCmd.Flags().BoolVar(&formatNoUI, "no-ui", false, "plain text output, no fullscreen map")
	root.AddCommand(formatCmd)

	infoCmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Show what an image mounts as",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := normalizeDevicePath(args[0])
			sys, fdc, info, err := mountScratch(path)
			if err != nil {
				return err
			}
			defer sys.Close(0)
			g := info.Geometry
			fmt.Printf("Image:    %s\n", path)
			fmt.Printf("Format:   %s\n", info.Format)
			if size, err := probeFileSize(path); err == nil {
				fmt.Printf("Size:     %s (%d bytes)\n", human(size), size)
			}
			if g.Sectors > 0 {
				fmt.Printf("Geometry: %d tracks x %d sides x %d sectors x %d bytes",
					g.Tracks, g.Sides, g.Sectors, g.SectorSize)
				if g.FirstSector != 0 {
					fmt.Printf(", IDs from %d", g.FirstSector)
				}
				fmt.Println()
			} else {
				fmt.Printf("Geometry: %d tracks x %d sides, sectors vary per track\n", g.Tracks, g.Sides)
			}
			density := "FM (single density)"
			if info.DoubleDensity {
				density = "MFM (double density)"
			}
			fmt.Printf("Encoding: %s\n", density)
			if info.DoubleStepped {
				fmt.Println("Stepping: 2:1 (40-track media)")
			}
			if info.Protected {
				fmt.Println("Write:    protected")
			}
			printCatalogue(sys, fdc, info)
			return nil
		},
	}
	root.AddCommand(infoCmd)

	var dumpTrack, dumpSide, dumpSector int
	dumpCmd := &cobra.Command{
		Use:   "dump <image>",
		Short: "Hex-dump one sector read through the drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := normalizeDevicePath(args[0])
			sys, fdc, info, err := mountScratch(path)
			if err != nil {
				return err
			}
			defer sys.Close(0)
			out, data := readSector(sys, fdc, dumpSector, dumpTrack, dumpSide, info.DoubleDensity)
			fmt.Printf("%s  track %d  side %d  sector %d: %s, %d bytes\n",
				filepath.Base(path), dumpTrack, dumpSide, dumpSector, out, len(data))
			if len(data) > 0 {
				fmt.Print(hex.Dump(data))
			}
			if out != outcomeOK {
				return fmt.Errorf("read failed: %s", out)
			}
			return nil
		},
	}
	dumpCmd.Flags().IntVar(&dumpTrack, "track", 0, "physical track to read")
	dumpCmd.Flags().IntVar(&dumpSide, "side", 0, "disc side")
	dumpCmd.Flags().IntVar(&dumpSector, "sector", 0, "sector ID")
	root.AddCommand(dumpCmd)

	var noUI bool
	verifyCmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Read every sector through the drive and map the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := normalizeDevicePath(args[0])
			sys, fdc, info, err := mountScratch(path)
			if err != nil {
				return err
			}
			defer sys.Close(0)
			rows := planSweep(sys, fdc, info)

			var tot sweepTotals
			if noUI {
				tot, err = verifyPlain(sys, fdc, info, rows)
			} else {
				tot, err = verifyWithUI(sys, fdc, info, rows)
			}
			if err != nil {
				return err
			}
			total := tot.ok + tot.bad + tot.missing
			fmt.Printf("%s: %d sectors read: %d ok, %d bad crc, %d missing\n",
				filepath.Base(path), total, tot.ok, tot.bad, tot.missing)
			if tot.bad+tot.missing > 0 {
				return fmt.Errorf("%d sectors unreadable", tot.bad+tot.missing)
			}
			return nil
		},
	}
	verifyCmd.Flags().BoolVar(&noUI, "no-ui", false, "plain text output, no fullscreen map")
	root.AddCommand(verifyCmd)

	var copyForce bool
	copyCmd := &cobra.Command{
		Use:   "copy <source> <dest>",
		Short: "Copy media sector-by-sector through two emulated drives",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			src := normalizeDevicePath(args[0])
			dst := normalizeDevicePath(args[1])
			if fi, err := os.Stat(dst); err == nil && !fi.Mode().IsRegular() && !copyForce {
				return fmt.Errorf("--force is required for device operations")
			}
			ssys, sfdc, sinfo, err := mountScratch(src)
			if err != nil {
				return err
			}
			defer ssys.Close(0)
			dsys, dfdc, dinfo, err := mountScratch(dst)
			if err != nil {
				return err
			}
			defer dsys.Close(0)
			if dinfo.Protected {
				return fmt.Errorf("destination is write protected")
			}
			if sinfo.Geometry != dinfo.Geometry {
				return fmt.Errorf("source and destination geometries differ")
			}
			rows := planSweep(ssys, sfdc, sinfo)
			copied, skipped := 0, 0
			for _, row := range rows {
				for _, sector := range row.sectors {
					out, data := readSector(ssys, sfdc, sector, row.track, row.side, sinfo.DoubleDensity)
					if out != outcomeOK && out != outcomeBadData {
						skipped++
						continue
					}
					wout := writeSector(dsys, dfdc, sector, row.track, row.side, dinfo.DoubleDensity, data)
					if wout != outcomeOK {
						return fmt.Errorf("write track %d side %d sector %d: %s", row.track, row.side, sector, wout)
					}
					copied++
				}
			}
			fmt.Printf("%s -> %s: %d sectors copied, %d skipped\n",
				filepath.Base(src), filepath.Base(dst), copied, skipped)
			return nil
		},
	}
	copyCmd.Flags().BoolVar(&copyForce, "force", false, "required when the destination is a device")
	root.AddCommand(copyCmd)

	var listAll bool
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List host block devices that may hold mountable media (read-only)",
		RunE: func(_ *cobra.Command, _ []string) error {
			infos, err := discoverDevices()
			if err != nil {
				return err
			}
			fmt.Printf("OS: %s\n", runtime.GOOS)
			fmt.Println("Read-only listing; nothing is written.")
			fmt.Println()
			fmt.Println("Block devices:")
			fmt.Printf("  %-22s  %-18s  %-8s\n", "Path", "Media", "Size")
			printed := false
			for _, d := range infos {
				if !d.Compatible {
					continue
				}
				media, sizeStr := "-", "-"
				if f, err := os.Open(d.Path); err == nil {
					if size, err := disc.ImageSize(f); err == nil && size > 0 {
						sizeStr = human(size)
						if t := mediaTypeBySize(size); t != "" {
							media = t
						}
					}
					f.Close()
				}
				fmt.Printf("  %-22s  %-18s  %-8s\n", d.Path, media, sizeStr)
				printed = true
			}
			if !printed {
				fmt.Println("  <none detected>")
			}
			if listAll {
				fmt.Println()
				fmt.Println("Other device nodes:")
				for _, d := range infos {
					if d.Compatible {
						continue
					}
					reason := d.Reason
					if reason == "" {
						reason = "not a whole-disk device"
					}
					fmt.Printf("  %s  (%s)\n", d.Path, reason)
				}
			}
			if vols := mountedVolumes(); len(vols) > 0 {
				fmt.Println()
				fmt.Println("Mounted volumes:")
				fmt.Printf("  %-24s  %-14s  %-18s  %-8s\n", "Mount", "FS", "Device", "Size")
				for _, m := range vols {
					fmt.Printf("  %-24s  %-14s  %-18s  %-8s\n", m.MountPoint, m.FSType, m.Device, human(m.SizeBytes))
				}
			}
			fmt.Println()
			fmt.Println("Notes:")
			switch runtime.GOOS {
			case "linux":
				fmt.Println("  - Real floppies are usually /dev/fd0; pass the node straight to info/dump/verify.")
			case "darwin":
				fmt.Println("  - Whole disks are /dev/diskN; partitions like /dev/diskNsM are not usable.")
			case "windows":
				fmt.Println(`  - Pass \\.\A: or \\.\PhysicalDriveN; drive letters are normalized automatically.`)
			}
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&listAll, "all", false, "include partitions and other non-usable nodes")
	root.AddCommand(devicesCmd)

	must(root.Execute())
}
