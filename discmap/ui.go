// Package discmap renders a full-screen, one-glyph-per-sector view of a
// disc image while it is swept through the drive emulation.
package discmap

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user stops a sweep from the keyboard.
var ErrInterrupted = errors.New("interrupted")

// UI owns the terminal screen for the duration of a sweep. The caller sets
// the text blocks and the sector-map lines; the UI only renders them.
type UI struct {
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title   string
	summary []string
	legend  []string
	status  []string
	mapRows []string
}

// New initializes the terminal screen and starts the key handler.
// q, Escape and Ctrl-C request a stop.
func New() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:        s,
		stopChan: make(chan struct{}),
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal to its original state.
func (u *UI) Close() {
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
	fmt.Print("\033[?1049l\033[?25h")
}

// RequestStop signals that the user wants the sweep abandoned. Safe to call
// more than once, including after Close.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		if u.s != nil {
			u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
	})
}

// IsStopped reports whether a stop has been requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

// MapRows reports how many sector-map rows fit with the current text
// blocks, so the caller can size its scroll window.
func (u *UI) MapRows() int {
	_, h := u.Size()
	used := 1 + len(u.summary) + len(u.legend) + len(u.status) + 1
	if h-used < 1 {
		return 1
	}
	return h - used
}

func (u *UI) SetTitle(t string)         { u.title = t }
func (u *UI) SetSummary(lines []string) { u.summary = append([]string(nil), lines...) }
func (u *UI) SetLegend(lines []string)  { u.legend = append([]string(nil), lines...) }
func (u *UI) SetStatus(lines []string)  { u.status = append([]string(nil), lines...) }
func (u *UI) SetMap(lines []string)     { u.mapRows = append([]string(nil), lines...) }

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, tcell.StyleDefault)
	}
}

// LayoutAndDraw redraws the whole screen from the current state.
func (u *UI) LayoutAndDraw() {
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()

	y := 0
	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		x := (w - len([]rune(u.title))) / 2
		if x < 0 {
			x = 0
		}
		putStr(u.s, x, y, u.title)
		y++
	}
	for _, line := range u.summary {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}
	for _, line := range u.legend {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	avail := h - y - len(u.status) - 1
	if avail < 1 {
		avail = 1
	}
	for i := 0; i < len(u.mapRows) && i < avail && y < h; i++ {
		runes := []rune(u.mapRows[i])
		if len(runes) > w {
			runes = runes[:w]
		}
		putStr(u.s, 0, y, string(runes))
		y++
	}

	if len(u.status) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Status ")
		y++
		for _, line := range u.status {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line)
			y++
		}
	}

	u.s.Show()
}

func (u *UI) eventLoop() {
	s := u.s // Fini makes PollEvent return nil; never re-read u.s here
	for {
		select {
		case <-u.stopChan:
			return
		default:
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			case ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
