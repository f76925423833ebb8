// Package scanmap renders a fullscreen terminal map of sector health while
// a device sweep is running. Sectors are downsampled onto a fixed grid of
// cells so multi-terabyte devices draw in constant memory; a cell shows the
// worst outcome of any sector that landed in it.
package scanmap

import (
	"errors"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned by a sweep when the user stops it from the map.
var ErrInterrupted = errors.New("interrupted")

// State is the health of a run of sectors. Higher values win when several
// sectors share a cell.
type State byte

const (
	StatePending State = iota
	StateHealthy
	StateWiped
	StateBad
)

const mapCells = 4096

var (
	styleDefault = tcell.StyleDefault
	stateGlyphs  = [...]rune{'░', '█', '▓', '✗'}
	stateStyles  = [...]tcell.Style{
		tcell.StyleDefault.Foreground(tcell.ColorGray),
		tcell.StyleDefault.Foreground(tcell.ColorGreen),
		tcell.StyleDefault.Foreground(tcell.ColorYellow),
		tcell.StyleDefault.Foreground(tcell.ColorRed),
	}
)

// UI owns the terminal for the duration of a sweep.
type UI struct {
	mu       sync.Mutex
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title  string
	status []string
	total  uint64
	cells  []State
}

// New initializes the screen and starts the input loop. totalSectors fixes
// the sector-to-cell mapping for the whole sweep.
func New(title string, totalSectors uint64) (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()

	cells := uint64(mapCells)
	if totalSectors > 0 && totalSectors < cells {
		cells = totalSectors
	}
	u := &UI{
		s:        s,
		stopChan: make(chan struct{}),
		title:    title,
		total:    totalSectors,
		cells:    make([]State, cells),
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
}

// RequestStop signals that the sweep should end. Safe to call repeatedly
// and from any goroutine.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
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

// Mark records the outcome of count sectors starting at start. A worse
// outcome is never overwritten by a better one.
func (u *UI) Mark(start, count uint64, st State) {
	if u.total == 0 || count == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	n := uint64(len(u.cells))
	first := start * n / u.total
	last := (start + count - 1) * n / u.total
	for i := first; i <= last && i < n; i++ {
		if st > u.cells[i] {
			u.cells[i] = st
		}
	}
}

// SetStatus replaces the status block under the title.
func (u *UI) SetStatus(lines []string) {
	u.mu.Lock()
	u.status = append([]string(nil), lines...)
	u.mu.Unlock()
}

// Draw repaints the whole screen from the current state.
func (u *UI) Draw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	if w <= 0 || h <= 0 {
		return
	}

	putStr(u.s, 0, 0, styleDefault, strings.Repeat("═", w))
	putStr(u.s, (w-len([]rune(u.title)))/2, 0, styleDefault, u.title)

	y := 2
	for _, line := range u.status {
		if y >= h-1 {
			break
		}
		putStr(u.s, 0, y, styleDefault, line)
		y++
	}
	y++

	if avail := (h - 1 - y) * w; avail > 0 && y < h-1 {
		grid := make([]State, avail)
		for i, st := range u.cells {
			g := i * avail / len(u.cells)
			if st > grid[g] {
				grid[g] = st
			}
		}
		for i, st := range grid {
			u.s.SetContent(i%w, y+i/w, stateGlyphs[st], nil, stateStyles[st])
		}
	}

	putStr(u.s, 0, h-1, styleDefault, "░ pending   █ healthy   ▓ wiped   ✗ bad   |   Q to stop")
	u.s.Show()
}

func putStr(s tcell.Screen, x, y int, style tcell.Style, str string) {
	w, _ := s.Size()
	for _, r := range str {
		if x >= w {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func (u *UI) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
			u.Draw()
		case nil:
			return
		}
	}
}
