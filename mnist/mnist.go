// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mnist provides the MNIST database of handwritten digits: downloading, decoding, batching and
// rendering samples on the terminal.
//
// See http://yann.lecun.com/exdb/mnist/ for a description of the dataset.
package mnist

import (
	"github.com/pkg/errors"
)

const (
	// Width and Height of the MNIST images, in pixels.
	Width, Height = 28, 28

	// NumPixels of each image, the size of a flattened image.
	NumPixels = Width * Height

	// NumClasses is the number of digits.
	NumClasses = 10

	NumTrainExamples = 60000
	NumTestExamples  = 10000
)

// Split of the dataset.
type Split int

const (
	SplitTrain Split = iota
	SplitTest
)

// String implements fmt.Stringer.
func (s Split) String() string {
	switch s {
	case SplitTrain:
		return "train"
	case SplitTest:
		return "test"
	}
	return "unknown"
}

// Sample is one labeled image.
// Pixel intensities are normalized to [0, 1], in row-major order.
type Sample struct {
	Image [NumPixels]float32
	Label int
}

// Dataset is an in-memory split of MNIST. It is static after being loaded.
type Dataset struct {
	Name    string
	Split   Split
	Samples []Sample
}

// NewDataset creates a Dataset from the given samples, validating that all labels are in range.
func NewDataset(name string, split Split, samples []Sample) (*Dataset, error) {
	for ii, sample := range samples {
		if sample.Label < 0 || sample.Label >= NumClasses {
			return nil, errors.Errorf("dataset %q: sample #%d has label %d, must be in [0, %d)",
				name, ii, sample.Label, NumClasses)
		}
	}
	return &Dataset{Name: name, Split: split, Samples: samples}, nil
}

// Len returns the number of samples.
func (ds *Dataset) Len() int { return len(ds.Samples) }
