// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist_test

import (
	"io"
	"math/rand"
	"slices"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/mnistmlp/mnist"
	"github.com/gomlx/mnistmlp/mnist/mnisttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectPass drains one pass and returns the batch sizes and all the visited indices.
func collectPass(b *mnist.Batches) (sizes []int, visited []int) {
	for {
		batch, ok := b.Next()
		if !ok {
			return
		}
		sizes = append(sizes, batch.Len())
		visited = append(visited, batch.Indices...)
	}
}

func TestBatchesPass(t *testing.T) {
	ds := mnisttest.Synthetic(t, mnist.SplitTrain, 25, 0)
	for _, tc := range []struct {
		name       string
		batchSize  int
		wantSizes  []int
		numBatches int
	}{
		{"exact multiple", 5, []int{5, 5, 5, 5, 5}, 5},
		{"partial last batch", 10, []int{10, 10, 5}, 3},
		{"batch larger than dataset", 100, []int{25}, 1},
		{"batch of one", 1, slices.Repeat([]int{1}, 25), 25},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := mnist.NewBatches(ds, tc.batchSize, rand.New(rand.NewSource(3)))
			assert.Equal(t, tc.numBatches, b.NumBatches())
			sizes, visited := collectPass(b)
			assert.Equal(t, tc.wantSizes, sizes)

			// Every index exactly once.
			slices.Sort(visited)
			want := make([]int, ds.Len())
			for ii := range want {
				want[ii] = ii
			}
			assert.Equal(t, want, visited)

			// Exhausted until Reset.
			_, ok := b.Next()
			assert.False(t, ok)
			b.Reset()
			_, ok = b.Next()
			assert.True(t, ok)
		})
	}
}

func TestBatchesShuffle(t *testing.T) {
	ds := mnisttest.Synthetic(t, mnist.SplitTrain, 200, 0)

	ordered := mnist.NewBatches(ds, 10, nil)
	first := slices.Clone(ordered.Indices())
	assert.True(t, slices.IsSorted(first))
	ordered.Reset()
	assert.Equal(t, first, ordered.Indices(), "without shuffling every pass has the same order")

	shuffled := mnist.NewBatches(ds, 10, rand.New(rand.NewSource(42)))
	pass1 := slices.Clone(shuffled.Indices())
	shuffled.Reset()
	pass2 := slices.Clone(shuffled.Indices())
	assert.False(t, slices.IsSorted(pass1))
	assert.NotEqual(t, pass1, pass2, "a new permutation is expected on each pass")

	// Same seed gives the same order.
	again := mnist.NewBatches(ds, 10, rand.New(rand.NewSource(42)))
	assert.Equal(t, pass1, again.Indices())
}

func TestBatchesYield(t *testing.T) {
	ds := mnisttest.Synthetic(t, mnist.SplitTrain, 13, 0)
	b := mnist.NewBatches(ds, 5, nil)
	var sizes []int
	for {
		spec, inputs, labels, err := b.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, spec)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		n := inputs[0].Shape().Dimensions[0]
		sizes = append(sizes, n)
		assert.Equal(t, []int{n, mnist.NumPixels}, inputs[0].Shape().Dimensions)
		assert.Equal(t, []int{n, 1}, labels[0].Shape().Dimensions)

		gotLabels := tensors.MustCopyFlatData[int32](labels[0])
		for _, label := range gotLabels {
			assert.True(t, label >= 0 && label < mnist.NumClasses)
		}
	}
	assert.Equal(t, []int{5, 5, 3}, sizes)

	// Still EOF until reset.
	_, _, _, err := b.Yield()
	assert.Equal(t, io.EOF, err)
}

func TestBatchesEmpty(t *testing.T) {
	ds, err := mnist.NewDataset("empty", mnist.SplitTest, nil)
	require.NoError(t, err)
	b := mnist.NewBatches(ds, 10, rand.New(rand.NewSource(0)))
	assert.Equal(t, 0, b.NumBatches())
	_, ok := b.Next()
	assert.False(t, ok)
}

func TestNewBatchesInvalidSize(t *testing.T) {
	ds := mnisttest.Synthetic(t, mnist.SplitTrain, 3, 0)
	require.Panics(t, func() { mnist.NewBatches(ds, 0, nil) })
}

func TestNewDatasetInvalidLabel(t *testing.T) {
	_, err := mnist.NewDataset("bad", mnist.SplitTrain, []mnist.Sample{{Label: 10}})
	require.Error(t, err)
}

func TestImagesTensor(t *testing.T) {
	ds := mnisttest.Synthetic(t, mnist.SplitTest, 3, 5)
	images := [][]float32{ds.Samples[0].Image[:], ds.Samples[1].Image[:], ds.Samples[2].Image[:]}
	imagesT := mnist.ImagesTensor(images)
	assert.Equal(t, []int{3, mnist.NumPixels}, imagesT.Shape().Dimensions)
	flat := tensors.MustCopyFlatData[float32](imagesT)
	assert.Equal(t, images[1], flat[mnist.NumPixels:2*mnist.NumPixels])

	require.Panics(t, func() { mnist.ImagesTensor([][]float32{images[0][:10]}) })
}
