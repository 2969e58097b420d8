package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// EstimateBar renders an Estimator's percent as a terminal bar. It is
// labelled "estimated" so it is never read as byte progress.
type EstimateBar struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	out  io.Writer
	done bool
}

// NewEstimateBar creates a bar for the named upload writing to out.
func NewEstimateBar(out io.Writer, name string) *EstimateBar {
	b := &EstimateBar{out: out}
	b.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(fmt.Sprintf("%s (estimated)", name)),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(0),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
	)
	return b
}

// Set is suitable as EstimatorOptions.OnChange.
func (b *EstimateBar) Set(percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		// After completion only a new estimate (back at 0) redraws the bar.
		if percent != 0 {
			return
		}
		b.bar.Reset()
		b.done = false
	}
	_ = b.bar.Set(percent)
	if percent >= 100 {
		b.done = true
	}
}

// Abort clears the bar after a failed upload.
func (b *EstimateBar) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Clear()
	fmt.Fprint(b.out, "\r")
}
