package main

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

// testProgress returns a tracker with a controllable clock whose output is
// treated as a terminal.
func testProgress(totalBytes uint64, out *bytes.Buffer) (*progress, *time.Time) {
	p := newProgress(totalBytes, out)
	p.tty = true
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestProgressFirstCallSilent(t *testing.T) {
	var out bytes.Buffer
	p, _ := testProgress(1000<<20, &out)
	p.update(0)
	if out.Len() != 0 {
		t.Fatalf("baseline call produced output: %q", out.String())
	}
}

func TestProgressRateLimited(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)

	p.update(0)
	*now = now.Add(200 * time.Millisecond)
	p.update(10 << 20)
	if out.Len() != 0 {
		t.Fatalf("report emitted before 0.5s elapsed: %q", out.String())
	}

	*now = now.Add(400 * time.Millisecond)
	p.update(100 << 20)
	if !strings.Contains(out.String(), "Progress:") {
		t.Fatalf("no report after interval elapsed: %q", out.String())
	}
}

var etaRe = regexp.MustCompile(`ETA (\d+):(\d+)`)

func TestProgressETANonIncreasing(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)

	p.update(0)
	for i := 1; i <= 9; i++ {
		*now = now.Add(time.Second)
		p.update(uint64(i) * 100 << 20)
	}

	matches := etaRe.FindAllStringSubmatch(out.String(), -1)
	if len(matches) < 2 {
		t.Fatalf("expected several progress reports, got %d:\n%q", len(matches), out.String())
	}
	prev := int(^uint(0) >> 1)
	for _, m := range matches {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		eta := mins*60 + secs
		if eta > prev {
			t.Fatalf("ETA increased under constant throughput: %v", matches)
		}
		prev = eta
	}
}

func TestProgressFinalSummary(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)

	p.update(0)
	*now = now.Add(2 * time.Second)
	p.finish(300 << 20)

	s := out.String()
	if !strings.Contains(s, "Finished, time 00:02.000") {
		t.Errorf("missing summary timing: %q", s)
	}
	if !strings.Contains(s, " 300 MiB written") {
		t.Errorf("missing summary volume: %q", s)
	}
	if !strings.Contains(s, "150.0 MiB/s") {
		t.Errorf("missing summary speed: %q", s)
	}
}

func TestProgressFinalPrintsWithoutTTY(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)
	p.tty = false

	p.update(0)
	*now = now.Add(time.Second)
	p.update(100 << 20)
	if out.Len() != 0 {
		t.Fatalf("progress line emitted without a terminal: %q", out.String())
	}
	*now = now.Add(time.Second)
	p.finish(200 << 20)
	if !strings.Contains(out.String(), "Finished,") {
		t.Fatalf("final summary suppressed without a terminal: %q", out.String())
	}
}

func TestProgressSkipsZeroRate(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)

	p.update(0)
	*now = now.Add(time.Second)
	p.update(100 << 10) // under one MiB: rate rounds to zero
	*now = now.Add(time.Second)
	p.finish(100 << 10)
	if out.Len() != 0 {
		t.Fatalf("report emitted with zero rate: %q", out.String())
	}
}

func TestProgressSnapshot(t *testing.T) {
	var out bytes.Buffer
	p, now := testProgress(1000<<20, &out)

	p.update(0)
	*now = now.Add(4 * time.Second)
	elapsed, rate, eta := p.snapshot(400 << 20)
	if elapsed != 4*time.Second {
		t.Errorf("elapsed = %v", elapsed)
	}
	if rate != 100 {
		t.Errorf("rate = %v MiB/s, want 100", rate)
	}
	if eta != 6*time.Second {
		t.Errorf("eta = %v, want 6s", eta)
	}
}
