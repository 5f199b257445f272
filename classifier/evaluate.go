// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"fmt"
	"math"

	"github.com/gomlx/mnistmlp/mnist"
	"github.com/pkg/errors"
)

// ErrEmptySplit is returned when evaluating over a dataset with no examples.
var ErrEmptySplit = errors.New("cannot evaluate accuracy over an empty dataset")

// Accuracy counts correct predictions.
type Accuracy struct {
	Correct, Total int
}

// Value returns Correct/Total, or NaN if Total is 0.
func (a Accuracy) Value() float64 {
	if a.Total == 0 {
		return math.NaN()
	}
	return float64(a.Correct) / float64(a.Total)
}

// Rounded returns Value rounded to 3 decimal places.
func (a Accuracy) Rounded() float64 {
	return math.Round(a.Value()*1000) / 1000
}

// String implements fmt.Stringer.
func (a Accuracy) String() string {
	return fmt.Sprintf("%.3f (%d/%d)", a.Rounded(), a.Correct, a.Total)
}

// Evaluate runs the predictor over one full pass of batches (starting from a Reset) and counts how many
// predictions match the labels.
func Evaluate(p *Predictor, batches *mnist.Batches) (Accuracy, error) {
	var acc Accuracy
	if batches.Dataset().Len() == 0 {
		return acc, errors.WithMessagef(ErrEmptySplit, "dataset %q", batches.Dataset().Name)
	}
	batches.Reset()
	defer batches.Reset()
	for {
		batch, ok := batches.Next()
		if !ok {
			break
		}
		predicted, err := p.Classify(batch.Images)
		if err != nil {
			return acc, errors.WithMessagef(err, "evaluating %q", batches.Name())
		}
		for ii, class := range predicted {
			if class == batch.Labels[ii] {
				acc.Correct++
			}
		}
		acc.Total += batch.Len()
	}
	return acc, nil
}
