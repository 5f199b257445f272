// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/mnistmlp/mnist"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// Table returns the results as rows of (name, value).
func (r *Results) Table() [][2]string {
	rows := [][2]string{
		{"Backend", r.Backend},
		{"Parameters", humanize.Comma(int64(r.NumParameters))},
	}
	if len(r.InitialOutput) > 0 {
		values := make([]string, len(r.InitialOutput))
		for ii, v := range r.InitialOutput {
			values[ii] = fmt.Sprintf("%.2f", v)
		}
		rows = append(rows, [2]string{"Untrained output", "[" + strings.Join(values, " ") + "]"})
	}
	for _, epochLoss := range r.EpochLosses {
		rows = append(rows, [2]string{
			fmt.Sprintf("Epoch %d loss", epochLoss.Epoch),
			fmt.Sprintf("%.4f", epochLoss.Loss),
		})
	}
	rows = append(rows, [2]string{"Training time", commandline.FormatDuration(r.TrainingTime)})
	if r.TrainAccuracy != nil {
		rows = append(rows, [2]string{"Accuracy (train)", fmt.Sprintf("%.3f", r.TrainAccuracy.Rounded())})
	}
	if r.TestAccuracy != nil {
		rows = append(rows, [2]string{"Accuracy (test)", fmt.Sprintf("%.3f", r.TestAccuracy.Rounded())})
	}
	if r.Sample != nil {
		rows = append(rows, [2]string{
			fmt.Sprintf("Sample #%d (%s)", r.Sample.Index, r.Sample.Split),
			fmt.Sprintf("label=%d predicted=%d (p=%.3f)", r.Sample.Label, r.Sample.Prediction.Class,
				r.Sample.Prediction.Probabilities[r.Sample.Prediction.Class]),
		})
	}
	return rows
}

// Report writes the results table to w, followed by the sample image, if there is one.
func (r *Results) Report(w io.Writer) error {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		Headers("Metric", "Value").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 0:
				return rightAlignedStyle
			default:
				return normalStyle
			}
		})
	for _, row := range r.Table() {
		table.Row(row[0], row[1])
	}
	var sb strings.Builder
	sb.WriteString(table.String())
	sb.WriteByte('\n')
	if r.Sample != nil {
		sb.WriteString(fmt.Sprintf("\nSample #%d of the %s split, predicted %d:\n",
			r.Sample.Index, r.Sample.Split, r.Sample.Prediction.Class))
		sb.WriteString(mnist.Render(r.Sample.Image))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
