package main

import (
	"io"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/nemanja-m/diskmr/pkg/engine"
)

// progressObserver renders one progress bar per job phase.
type progressObserver struct {
	w   io.Writer
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) PhaseStarted(state engine.State, units int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish()
	}
	p.bar = progressbar.NewOptions(units,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(phaseLabel(state)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { io.WriteString(p.w, "\n") }),
	)
}

func (p *progressObserver) UnitDone(engine.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *progressObserver) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

func phaseLabel(state engine.State) string {
	return strings.ToLower(strings.ReplaceAll(string(state), "_", " "))
}
