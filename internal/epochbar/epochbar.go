// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package epochbar displays one progress bar per training epoch, with the loss of the latest batch.
package epochbar

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// Name of the hooks registered in the train.Loop.
const Name = "mnistmlp.epochbar"

// Theme of the progress bars. It defaults to the ASCII version, use progressbar.ThemeUnicode for
// a prettier one if the terminal supports it.
var Theme = progressbar.ThemeASCII

// RefreshPeriod is the minimum time between redraws of a bar.
var RefreshPeriod = 100 * time.Millisecond

var epochStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#705090"))

// EpochBar draws the bars of one training loop.
type EpochBar struct {
	w                        io.Writer
	term                     *termenv.Output
	numEpochs, stepsPerEpoch int

	epoch        int
	bar          *progressbar.ProgressBar
	cursorHidden bool
}

// Attach displays progress bars on stdout while loop runs. See AttachTo.
func Attach(loop *train.Loop, numEpochs, stepsPerEpoch int) *EpochBar {
	return AttachTo(loop, os.Stdout, numEpochs, stepsPerEpoch)
}

// AttachTo registers hooks in loop that draw, on w, one bar of stepsPerEpoch steps per epoch.
// It's meant to be used with train.Loop.RunEpochs.
//
// The OnEnd hook doesn't run if the loop fails, so callers should defer EpochBar.Stop.
func AttachTo(loop *train.Loop, w io.Writer, numEpochs, stepsPerEpoch int) *EpochBar {
	eb := newEpochBar(w, numEpochs, stepsPerEpoch)
	loop.OnStart(Name, 0, eb.onStart)
	loop.OnStep(Name, 0, eb.onStep)
	loop.OnEnd(Name, 0, eb.onEnd)
	return eb
}

func newEpochBar(w io.Writer, numEpochs, stepsPerEpoch int) *EpochBar {
	return &EpochBar{
		w:             w,
		term:          termenv.NewOutput(w),
		numEpochs:     numEpochs,
		stepsPerEpoch: stepsPerEpoch,
		epoch:         -1,
	}
}

func (eb *EpochBar) onStart(_ *train.Loop, _ train.Dataset) error {
	eb.epoch = -1
	eb.term.HideCursor()
	eb.cursorHidden = true
	return nil
}

func (eb *EpochBar) title(epoch int) string {
	return epochStyle.Render(fmt.Sprintf("Epoch %d/%d", epoch+1, eb.numEpochs))
}

func (eb *EpochBar) onStep(loop *train.Loop, metrics []*tensors.Tensor) error {
	if loop.Epoch != eb.epoch {
		eb.finishBar()
		eb.epoch = loop.Epoch
		eb.bar = progressbar.NewOptions(eb.stepsPerEpoch,
			progressbar.OptionSetWriter(eb.w),
			progressbar.OptionSetDescription(eb.title(eb.epoch)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(RefreshPeriod),
			progressbar.OptionSetTheme(Theme),
		)
	}
	if len(metrics) > 0 {
		loss := shapes.ConvertTo[float64](metrics[0].Value())
		eb.bar.Describe(fmt.Sprintf("%s loss=%.4f", eb.title(eb.epoch), loss))
	}
	return eb.bar.Add(1)
}

func (eb *EpochBar) finishBar() {
	if eb.bar == nil {
		return
	}
	_ = eb.bar.Finish()
	_, _ = fmt.Fprintln(eb.w)
	eb.bar = nil
}

func (eb *EpochBar) onEnd(_ *train.Loop, _ []*tensors.Tensor) error {
	eb.Stop()
	return nil
}

// Stop finishes the current bar and shows the cursor again. It's safe to call more than once.
func (eb *EpochBar) Stop() {
	eb.finishBar()
	if eb.cursorHidden {
		eb.term.ShowCursor()
		eb.cursorHidden = false
	}
}
