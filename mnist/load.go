// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"net/url"
	"path"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/mnistmlp/internal/downloader"
	"github.com/petar/GoMNIST"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DownloadURL is the base URL of the public mirror the files are fetched from.
var DownloadURL = "https://storage.googleapis.com/cvdf-datasets/mnist"

// Files holds the (images, labels) gzip IDX file names of each split.
var Files = map[Split][2]string{
	SplitTrain: {"train-images-idx3-ubyte.gz", "train-labels-idx1-ubyte.gz"},
	SplitTest:  {"t10k-images-idx3-ubyte.gz", "t10k-labels-idx1-ubyte.gz"},
}

// Checksums (SHA-256) of the files served by DownloadURL. Files without an entry are not validated.
var Checksums = map[string]string{
	"train-images-idx3-ubyte.gz": "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	"train-labels-idx1-ubyte.gz": "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	"t10k-images-idx3-ubyte.gz":  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	"t10k-labels-idx1-ubyte.gz":  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Download the MNIST files to dataDir, if they are not there yet.
func Download(dataDir string) error {
	dataDir, err := fsutil.ReplaceTildeInDir(dataDir)
	if err != nil {
		return err
	}
	for _, split := range []Split{SplitTrain, SplitTest} {
		for _, file := range Files[split] {
			fileURL, err := url.JoinPath(DownloadURL, file)
			if err != nil {
				return errors.Wrapf(err, "invalid download URL %q", DownloadURL)
			}
			if err = downloader.DownloadIfMissing(fileURL, path.Join(dataDir, file), Checksums[file]); err != nil {
				return errors.WithMessagef(err, "failed to download MNIST %s split", split)
			}
		}
	}
	return nil
}

// Load decodes the given split from the gzip IDX files in dataDir and normalizes pixel values to [0, 1].
func Load(dataDir string, split Split) (*Dataset, error) {
	dataDir, err := fsutil.ReplaceTildeInDir(dataDir)
	if err != nil {
		return nil, err
	}
	files, found := Files[split]
	if !found {
		return nil, errors.Errorf("unknown MNIST split %d", split)
	}
	imagesPath, labelsPath := path.Join(dataDir, files[0]), path.Join(dataDir, files[1])
	set, err := GoMNIST.ReadSet(imagesPath, labelsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read MNIST %s split from %q and %q", split, imagesPath, labelsPath)
	}
	if set.NRow != Height || set.NCol != Width {
		return nil, errors.Errorf("MNIST %s split has images of %dx%d, expected %dx%d",
			split, set.NRow, set.NCol, Height, Width)
	}
	if len(set.Images) != len(set.Labels) {
		return nil, errors.Errorf("MNIST %s split has %d images but %d labels",
			split, len(set.Images), len(set.Labels))
	}

	samples := make([]Sample, len(set.Images))
	for ii, rawImage := range set.Images {
		if len(rawImage) != NumPixels {
			return nil, errors.Errorf("MNIST %s split image #%d has %d pixels, expected %d",
				split, ii, len(rawImage), NumPixels)
		}
		sample := &samples[ii]
		for jj, v := range rawImage {
			sample.Image[jj] = float32(v) / 255.0
		}
		sample.Label = int(set.Labels[ii])
	}
	ds, err := NewDataset("MNIST "+split.String(), split, samples)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("loaded %d examples of MNIST %s split", ds.Len(), split)
	return ds, nil
}

// LoadAll loads both the train and test splits.
func LoadAll(dataDir string) (trainDS, testDS *Dataset, err error) {
	trainDS, err = Load(dataDir, SplitTrain)
	if err != nil {
		return nil, nil, err
	}
	testDS, err = Load(dataDir, SplitTest)
	if err != nil {
		return nil, nil, err
	}
	return trainDS, testDS, nil
}
