package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

const progressInterval = 500 * time.Millisecond

// progress tracks one sweep and prints a rewritten console status line.
// The baseline is established by the first update call, which never emits;
// all rates are averages over the whole sweep so far, which makes the ETA
// an approximation that converges as the sweep progresses.
type progress struct {
	total uint64
	out   io.Writer
	tty   bool
	quiet bool
	now   func() time.Time

	start time.Time
	last  time.Time
}

func newProgress(totalBytes uint64, out io.Writer) *progress {
	p := &progress{total: totalBytes, out: out, now: time.Now}
	if f, ok := out.(*os.File); ok {
		p.tty = term.IsTerminal(int(f.Fd()))
	}
	if out == io.Discard {
		p.quiet = true
	}
	return p
}

// update is called after every chunk. Reports are suppressed until at
// least progressInterval has passed since the last emitted one.
func (p *progress) update(bytes uint64) {
	t := p.now()
	if p.start.IsZero() {
		p.start, p.last = t, t
		return
	}
	if t.Sub(p.last) < progressInterval {
		return
	}
	p.last = t
	p.emit(bytes, false)
}

// finish bypasses rate limiting and prints the terminal summary line.
func (p *progress) finish(bytes uint64) {
	if p.start.IsZero() {
		return
	}
	p.last = p.now()
	p.emit(bytes, true)
}

func (p *progress) emit(bytes uint64, final bool) {
	tdiff := p.last.Sub(p.start).Seconds()
	if tdiff == 0 {
		return
	}
	mbytes := bytes / (1 << 20)
	rate := float64(mbytes) / tdiff
	if rate == 0 {
		return
	}

	if final {
		if p.quiet {
			return
		}
		p.clearLine()
		whole := int64(tdiff)
		millis := int64((tdiff - float64(whole)) * 1000)
		fmt.Fprintf(p.out, "Finished, time %02d:%02d.%03d, %4d MiB written, speed %5.1f MiB/s\n",
			whole/60, whole%60, millis, mbytes, rate)
		return
	}
	if p.quiet || !p.tty {
		return
	}
	eta := int64(float64(p.total)/(1<<20)/rate - tdiff)
	if eta < 0 {
		eta = 0
	}
	p.clearLine()
	fmt.Fprintf(p.out, "Progress: %5.1f%%, ETA %02d:%02d, %4d MiB written, speed %5.1f MiB/s",
		float64(bytes)/float64(p.total)*100, eta/60, eta%60, mbytes, rate)
}

// snapshot exposes the running averages for the sector-map status lines.
func (p *progress) snapshot(bytes uint64) (elapsed time.Duration, rate float64, eta time.Duration) {
	if p.start.IsZero() {
		return
	}
	elapsed = p.now().Sub(p.start)
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(bytes) / (1 << 20) / secs
	}
	if rate > 0 && bytes < p.total {
		remain := float64(p.total-bytes) / (1 << 20)
		eta = time.Duration(remain / rate * float64(time.Second))
	}
	return
}

// clearLine erases the current progress line (vt100) so sector reports and
// the summary do not mix with it.
func (p *progress) clearLine() {
	if p.tty && !p.quiet {
		fmt.Fprint(p.out, "\x1b[2K\r")
	}
}
