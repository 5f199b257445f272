// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mnisttest holds test utilities: synthetic MNIST-like datasets and writers of the IDX file format.
package mnisttest

import (
	"compress/gzip"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/mnistmlp/mnist"
	"github.com/stretchr/testify/require"
)

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// Synthetic returns a dataset with n examples, where the digit d lights up a horizontal band of rows
// starting at row 4+2*d, with some uniform noise everywhere. Labels cycle over all classes, so the
// dataset is balanced and easy to learn.
func Synthetic(t testing.TB, split mnist.Split, n int, seed int64) *mnist.Dataset {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]mnist.Sample, n)
	for ii := range samples {
		label := ii % mnist.NumClasses
		sample := &samples[ii]
		sample.Label = label
		for jj := range sample.Image {
			sample.Image[jj] = 0.2 * rng.Float32()
		}
		for row := 4 + 2*label; row < 6+2*label; row++ {
			for col := 4; col < mnist.Width-4; col++ {
				sample.Image[row*mnist.Width+col] = 0.8 + 0.2*rng.Float32()
			}
		}
	}
	ds, err := mnist.NewDataset("synthetic "+split.String(), split, samples)
	require.NoError(t, err)
	return ds
}

// WriteIDX writes ds as the gzip IDX files of its split (see mnist.Files) under dir.
// Pixels are quantized back to bytes.
func WriteIDX(t testing.TB, dir string, ds *mnist.Dataset) {
	files := mnist.Files[ds.Split]
	n := int32(ds.Len())

	images := make([]byte, 0, ds.Len()*mnist.NumPixels)
	labels := make([]byte, 0, ds.Len())
	for _, sample := range ds.Samples {
		for _, v := range sample.Image {
			images = append(images, byte(v*255+0.5))
		}
		labels = append(labels, byte(sample.Label))
	}
	WriteGzipIDX(t, filepath.Join(dir, files[0]), []int32{imagesMagic, n, mnist.Height, mnist.Width}, images)
	WriteGzipIDX(t, filepath.Join(dir, files[1]), []int32{labelsMagic, n}, labels)
}

// WriteGzipIDX writes a gzip compressed IDX file with the given big-endian header followed by data.
func WriteGzipIDX(t testing.TB, filePath string, header []int32, data []byte) {
	f, err := os.Create(filePath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	require.NoError(t, binary.Write(gz, binary.BigEndian, header))
	_, err = gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}
