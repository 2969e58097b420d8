package progress

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// JobUI shows the status of polled transfer jobs. On a terminal each job
// gets an mpb spinner line with the last backend status; otherwise a plain
// line is printed whenever the status changes.
type JobUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
}

// NewJobUI creates a JobUI writing to out. Pass the result of IsTerminal
// for the underlying file.
func NewJobUI(out io.Writer, isTerminal bool) *JobUI {
	u := &JobUI{out: out, isTerminal: isTerminal}
	if isTerminal {
		if f, ok := out.(*os.File); ok && runtime.GOOS == "windows" {
			enableWindowsANSI(f)
		}
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(60),
		)
	}
	return u
}

// JobLine is one tracked job.
type JobLine struct {
	ui     *JobUI
	bar    *mpb.Bar
	label  string
	mu     sync.Mutex
	status string
	ended  bool
}

// AddJob starts tracking a job labelled label (typically "src/key -> dst").
func (u *JobUI) AddJob(label string) *JobLine {
	l := &JobLine{ui: u, label: label, status: "submitted"}
	if u.isTerminal {
		l.bar = u.progress.New(0,
			mpb.SpinnerStyle(),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Any(func(decor.Statistics) string { return l.Status() }, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Elapsed(decor.ET_STYLE_GO),
			),
		)
	} else {
		fmt.Fprintf(u.out, "%s: %s\n", label, l.status)
	}
	return l
}

// Status returns the last status shown.
func (l *JobLine) Status() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Update shows a new backend status.
func (l *JobLine) Update(status string) {
	l.mu.Lock()
	if l.ended || status == l.status {
		l.mu.Unlock()
		return
	}
	l.status = status
	l.mu.Unlock()

	if !l.ui.isTerminal {
		fmt.Fprintf(l.ui.out, "%s: %s\n", l.label, status)
	}
}

// Finish ends the line with a final status. Calls after the first are ignored.
func (l *JobLine) Finish(status string, success bool) {
	l.mu.Lock()
	if l.ended {
		l.mu.Unlock()
		return
	}
	l.ended = true
	l.status = status
	l.mu.Unlock()

	mark := "✓"
	if !success {
		mark = "✗"
	}
	msg := fmt.Sprintf("%s %s: %s\n", mark, l.label, status)

	if l.bar != nil {
		if success {
			l.bar.SetTotal(-1, true)
		} else {
			l.bar.Abort(false)
		}
		// Write through mpb so the line lands above the spinners.
		_, _ = l.ui.progress.Write([]byte(msg))
		return
	}
	fmt.Fprint(l.ui.out, msg)
}

// Wait blocks until every line finished rendering.
func (u *JobUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}
