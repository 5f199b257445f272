// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"golang.org/x/exp/constraints"
)

// Batches iterates over a Dataset in batches, optionally shuffling at the start of every pass.
//
// It implements train.Dataset, so it can be fed directly to a train.Loop. Each pass covers every sample
// exactly once; the last batch is shorter when the number of samples is not a multiple of the batch size.
type Batches struct {
	ds        *Dataset
	batchSize int
	shuffle   *rand.Rand

	order    []int
	position int
}

var _ train.Dataset = (*Batches)(nil)

// Batch of samples as plain Go values.
type Batch struct {
	// Indices of the samples in the Dataset.
	Indices []int

	// Images are the flattened (NumPixels) images, normalized to [0, 1].
	Images [][]float32

	Labels []int
}

// Len returns the number of examples in the batch.
func (b Batch) Len() int { return len(b.Indices) }

// NewBatches creates a batch iterator over ds.
//
// If shuffle is nil samples are visited in dataset order, otherwise a new permutation is drawn
// from shuffle at the start of every pass.
// It panics if batchSize <= 0.
func NewBatches(ds *Dataset, batchSize int, shuffle *rand.Rand) *Batches {
	if batchSize <= 0 {
		exceptions.Panicf("mnist.NewBatches(%q): batch size must be > 0, got %d", ds.Name, batchSize)
	}
	b := &Batches{ds: ds, batchSize: batchSize, shuffle: shuffle}
	b.Reset()
	return b
}

// Name implements train.Dataset.
func (b *Batches) Name() string {
	return fmt.Sprintf("%s [batch=%d]", b.ds.Name, b.batchSize)
}

// Dataset being iterated.
func (b *Batches) Dataset() *Dataset { return b.ds }

// BatchSize returns the configured batch size. The last batch of a pass may be smaller.
func (b *Batches) BatchSize() int { return b.batchSize }

// NumBatches in one pass: ceil(N / batchSize).
func (b *Batches) NumBatches() int {
	return (b.ds.Len() + b.batchSize - 1) / b.batchSize
}

// Indices returns the sample order of the current pass.
func (b *Batches) Indices() []int { return b.order }

// Reset implements train.Dataset. It restarts the pass, drawing a new permutation if shuffling.
func (b *Batches) Reset() {
	n := b.ds.Len()
	if b.shuffle != nil {
		b.order = b.shuffle.Perm(n)
	} else {
		if len(b.order) != n {
			b.order = make([]int, n)
		}
		for ii := range b.order {
			b.order[ii] = ii
		}
	}
	b.position = 0
}

// Next returns the next batch of the pass, or false if the pass is exhausted.
// It keeps returning false until Reset is called.
func (b *Batches) Next() (Batch, bool) {
	if b.position >= len(b.order) {
		return Batch{}, false
	}
	end := min(b.position+b.batchSize, len(b.order))
	indices := b.order[b.position:end]
	b.position = end

	batch := Batch{
		Indices: indices,
		Images:  make([][]float32, len(indices)),
		Labels:  make([]int, len(indices)),
	}
	for ii, idx := range indices {
		sample := &b.ds.Samples[idx]
		batch.Images[ii] = sample.Image[:]
		batch.Labels[ii] = sample.Label
	}
	return batch, true
}

// Yield implements train.Dataset.
//
// It returns the images shaped [batchSize, NumPixels] (float32) as the only input, and the labels
// shaped [batchSize, 1] (int32) as the only label. At the end of a pass it returns io.EOF.
func (b *Batches) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, ok := b.Next()
	if !ok {
		return nil, nil, nil, io.EOF
	}
	images, batchLabels := BatchTensors(batch)
	return b, []*tensors.Tensor{images}, []*tensors.Tensor{batchLabels}, nil
}

// BatchTensors converts a batch to its images ([batchSize, NumPixels] float32) and
// labels ([batchSize, 1] int32) tensors.
func BatchTensors(batch Batch) (images, labels *tensors.Tensor) {
	images = ImagesTensor(batch.Images)
	labels = tensors.FromFlatDataAndDimensions(convertSlice[int, int32](batch.Labels), batch.Len(), 1)
	return
}

// ImagesTensor stacks flattened images into a [len(images), NumPixels] float32 tensor.
// It panics if an image doesn't have NumPixels values.
func ImagesTensor(images [][]float32) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(concatRows(images, NumPixels), len(images), NumPixels)
}

// concatRows flattens rows of equal width into one slice.
func concatRows[T constraints.Integer | constraints.Float](rows [][]T, width int) []T {
	flat := make([]T, 0, len(rows)*width)
	for ii, row := range rows {
		if len(row) != width {
			exceptions.Panicf("row #%d has %d values, expected %d", ii, len(row), width)
		}
		flat = append(flat, row...)
	}
	return flat
}

func convertSlice[From, To constraints.Integer | constraints.Float](values []From) []To {
	converted := make([]To, len(values))
	for ii, v := range values {
		converted[ii] = To(v)
	}
	return converted
}
