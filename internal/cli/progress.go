package cli

import (
	"io"
	"os"

	"github.com/cloo-solutions/tubeqa/internal/service"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// BarProgress renders embedding progress as a terminal progress bar
type BarProgress struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewBarProgress creates a progress bar writing to w
func NewBarProgress(w io.Writer, description string) *BarProgress {
	return &BarProgress{w: w, description: description}
}

func (p *BarProgress) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *BarProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *BarProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// StderrIsTerminal reports whether progress output would reach a person
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// NewProgress returns a stderr progress bar when enabled, otherwise a no-op reporter.
func NewProgress(enabled bool) service.ProgressReporter {
	if !enabled {
		return service.NoopProgress
	}
	return NewBarProgress(os.Stderr, "embedding")
}
