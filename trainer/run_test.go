// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/mnistmlp/internal/downloader"
	"github.com/gomlx/mnistmlp/mnist"
	"github.com/gomlx/mnistmlp/mnist/mnisttest"
	"github.com/gomlx/mnistmlp/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/simplego"
)

func newTestBackend(t *testing.T) backends.Backend {
	backend, err := backends.NewWithConfig("go")
	require.NoError(t, err)
	return backend
}

// createTestContext trains a smaller model faster, to keep tests quick.
func createTestContext() *context.Context {
	ctx := CreateDefaultContext()
	ctx.SetParams(map[string]any{
		ParamSeed:                    42,
		ParamEvalBatchSize:           64,
		optimizers.ParamLearningRate: 0.01,
		model.ParamHiddenDims:        16,
	})
	return ctx
}

func TestTrainLastBatchLoss(t *testing.T) {
	backend := newTestBackend(t)
	ctx := createTestContext()
	cfg := ConfigFromContext(ctx)
	cfg.NumEpochs = 2

	// 95 examples in batches of 10: 10 steps per epoch, the last one with 5 examples.
	trainDS := mnisttest.Synthetic(t, mnist.SplitTrain, 95, 1)
	epochLosses, err := Train(backend, ctx, model.MLPFromContext(ctx), trainDS, cfg, false)
	require.NoError(t, err)
	require.Len(t, epochLosses, 2)
	for ii, epochLoss := range epochLosses {
		assert.Equal(t, ii+1, epochLoss.Epoch)
		assert.Equal(t, 10, epochLoss.Steps)
		assert.False(t, math.IsNaN(epochLoss.Loss) || math.IsInf(epochLoss.Loss, 0))
		assert.Greater(t, epochLoss.Loss, 0.0)
	}
	assert.True(t, model.HasVariables(ctx))

	assert.Equal(t, int64(20), optimizers.GetGlobalStep(ctx))
	numParams := model.NumParameters(ctx)

	// Training again continues from the current variables.
	_, err = Train(backend, ctx, model.MLPFromContext(ctx), trainDS, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, int64(40), optimizers.GetGlobalStep(ctx))
	assert.Equal(t, numParams, model.NumParameters(ctx), "no new model variables created")
}

func TestTrainEmptyDataset(t *testing.T) {
	backend := newTestBackend(t)
	ctx := createTestContext()
	ds, err := mnist.NewDataset("empty", mnist.SplitTrain, nil)
	require.NoError(t, err)
	_, err = Train(backend, ctx, model.NewMLP(), ds, ConfigFromContext(ctx), false)
	require.Error(t, err)
}

func TestRunWithDatasets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training test in short mode")
	}
	backend := newTestBackend(t)
	ctx := createTestContext()
	trainDS := mnisttest.Synthetic(t, mnist.SplitTrain, 500, 1)
	testDS := mnisttest.Synthetic(t, mnist.SplitTest, 100, 2)

	results, err := RunWithDatasets(backend, ctx, trainDS, testDS, -1)
	require.NoError(t, err)

	require.Len(t, results.InitialOutput, mnist.NumClasses)
	require.Len(t, results.EpochLosses, 3)
	for _, epochLoss := range results.EpochLosses {
		assert.Equal(t, 50, epochLoss.Steps)
	}
	require.NotNil(t, results.TrainAccuracy)
	require.NotNil(t, results.TestAccuracy)
	assert.Equal(t, trainDS.Len(), results.TrainAccuracy.Total)
	assert.Equal(t, testDS.Len(), results.TestAccuracy.Total)
	assert.GreaterOrEqual(t, results.TestAccuracy.Rounded(), 0.8, "synthetic digits should be easy to learn")

	require.NotNil(t, results.Sample)
	assert.Equal(t, mnist.SplitTest, results.Sample.Split)
	assert.Equal(t, testDS.Samples[results.Sample.Index].Label, results.Sample.Label)
	assert.True(t, results.Sample.Prediction.Class >= 0 && results.Sample.Prediction.Class < mnist.NumClasses)

	var buf bytes.Buffer
	require.NoError(t, results.Report(&buf))
	report := buf.String()
	for _, want := range []string{"Untrained output", "Epoch 3 loss", "Accuracy (train)", "Accuracy (test)", "predicted"} {
		assert.True(t, strings.Contains(report, want), "report missing %q:\n%s", want, report)
	}
}

func TestRunDisabledEvaluations(t *testing.T) {
	backend := newTestBackend(t)
	ctx := createTestContext()
	ctx.SetParams(map[string]any{
		ParamNumEpochs:   1,
		ParamEvalOnTrain: false,
		ParamShowSample:  false,
	})
	trainDS := mnisttest.Synthetic(t, mnist.SplitTrain, 30, 1)
	results, err := RunWithDatasets(backend, ctx, trainDS, nil, -1)
	require.NoError(t, err)
	assert.Nil(t, results.TrainAccuracy)
	assert.Nil(t, results.TestAccuracy)
	assert.Nil(t, results.Sample)
	assert.Len(t, results.EpochLosses, 1)
}

func TestRunFromDataDir(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training test in short mode")
	}
	t.Setenv(backends.ConfigEnvVar, "go")
	downloader.ShowProgressBar = false
	checksums := mnist.Checksums
	mnist.Checksums = nil // Synthetic files don't match the real ones.
	defer func() { mnist.Checksums = checksums }()

	dataDir := t.TempDir()
	mnisttest.WriteIDX(t, dataDir, mnisttest.Synthetic(t, mnist.SplitTrain, 200, 1))
	mnisttest.WriteIDX(t, dataDir, mnisttest.Synthetic(t, mnist.SplitTest, 50, 2))

	ctx := createTestContext()
	ctx.SetParam(ParamNumEpochs, 1)
	results, err := Run(ctx, dataDir, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, results.TrainAccuracy.Total)
	assert.Equal(t, 50, results.TestAccuracy.Total)
}

// TestRunRealMNIST trains with the default hyperparameters on the full dataset. It only runs if
// MNIST was already downloaded to ~/work/mnist.
func TestRunRealMNIST(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training test in short mode")
	}
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dataDir := filepath.Join(home, "work", "mnist")
	for _, files := range mnist.Files {
		for _, file := range files {
			if _, err := os.Stat(filepath.Join(dataDir, file)); err != nil {
				t.Skipf("MNIST not found in %q", dataDir)
			}
		}
	}
	trainDS, testDS, err := mnist.LoadAll(dataDir)
	require.NoError(t, err)

	backend := newTestBackend(t)
	ctx := CreateDefaultContext()
	ctx.SetParam(ParamSeed, 42)
	results, err := RunWithDatasets(backend, ctx, trainDS, testDS, -1)
	require.NoError(t, err)
	require.Len(t, results.EpochLosses, 3)
	for _, epochLoss := range results.EpochLosses {
		assert.Equal(t, mnist.NumTrainExamples/10, epochLoss.Steps)
	}
	require.NotNil(t, results.TrainAccuracy)
	assert.GreaterOrEqual(t, results.TrainAccuracy.Rounded(), 0.85)
	require.NotNil(t, results.TestAccuracy)
	assert.GreaterOrEqual(t, results.TestAccuracy.Rounded(), 0.85)
}
