// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/mnistmlp/classifier"
	"github.com/gomlx/mnistmlp/mnist"
	"github.com/gomlx/mnistmlp/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Results of a Run.
type Results struct {
	Backend       string
	NumParameters int

	// InitialOutput is the output (log-probabilities) of the untrained model for a random input.
	InitialOutput []float32

	EpochLosses  []EpochLoss
	TrainingTime time.Duration

	// TrainAccuracy and TestAccuracy are nil if the corresponding evaluation was disabled.
	TrainAccuracy, TestAccuracy *classifier.Accuracy

	// Sample is nil if ParamShowSample is false.
	Sample *SampleResult
}

// SampleResult is the prediction for one example of the evaluation data.
type SampleResult struct {
	Split      mnist.Split
	Index      int
	Label      int
	Image      []float32
	Prediction classifier.Prediction
}

// Run downloads MNIST to dataDir (if not there yet), loads it, and calls RunWithDatasets with the
// default backend.
func Run(ctx *context.Context, dataDir string, verbosity int) (*Results, error) {
	dataDir, err := fsutil.ReplaceTildeInDir(dataDir)
	if err != nil {
		return nil, err
	}
	if err = mnist.Download(dataDir); err != nil {
		return nil, err
	}
	trainDS, testDS, err := mnist.LoadAll(dataDir)
	if err != nil {
		return nil, err
	}
	if verbosity >= 1 {
		fmt.Printf("Loaded %s train and %s test examples from %q\n",
			humanize.Comma(int64(trainDS.Len())), humanize.Comma(int64(testDS.Len())), dataDir)
	}

	backend, err := backends.New()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create backend")
	}
	defer backend.Finalize()
	return RunWithDatasets(backend, ctx, trainDS, testDS, verbosity)
}

// RunWithDatasets builds the MLP configured in ctx, runs it once untrained on a random input, trains it on
// trainDS, evaluates the accuracy on trainDS and testDS and predicts one sample.
//
// testDS may be nil, in which case the test evaluation is skipped and the sample is taken from trainDS.
func RunWithDatasets(backend backends.Backend, ctx *context.Context, trainDS, testDS *mnist.Dataset,
	verbosity int) (*Results, error) {
	cfg := ConfigFromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if verbosity >= 1 {
		fmt.Printf("Backend %q:\t%s\n", backend.Name(), backend.Description())
	}
	if verbosity >= 2 {
		fmt.Println(commandline.SprintContextSettings(ctx))
	}
	results := &Results{Backend: backend.Name()}
	rng := rand.New(rand.NewSource(cfg.Seed))

	if !model.HasVariables(ctx) {
		err := exceptions.TryCatch[error](func() { ctx.RngStateFromSeed(cfg.Seed) })
		if err != nil {
			return nil, errors.WithMessage(err, "failed to seed the model initialization")
		}
	}
	mlp := model.MLPFromContext(ctx)
	predictor, err := classifier.NewPredictor(backend, ctx, mlp)
	if err != nil {
		return nil, err
	}
	defer predictor.Finalize()

	// Untrained model output on a random input: mostly a check that the model runs.
	randomImage := make([]float32, mnist.NumPixels)
	for ii := range randomImage {
		randomImage[ii] = float32(rng.NormFloat64())
	}
	results.InitialOutput, err = predictor.LogProbabilities(randomImage)
	if err != nil {
		return nil, errors.WithMessage(err, "untrained model failed on a random input")
	}
	results.NumParameters = model.NumParameters(ctx)
	klog.V(1).Infof("model has %s parameters", humanize.Comma(int64(results.NumParameters)))

	start := time.Now()
	results.EpochLosses, err = Train(backend, ctx, mlp, trainDS, cfg, verbosity >= 0)
	if err != nil {
		return nil, err
	}
	results.TrainingTime = time.Since(start)

	evaluate := func(ds *mnist.Dataset) (*classifier.Accuracy, error) {
		acc, err := classifier.Evaluate(predictor, mnist.NewBatches(ds, cfg.EvalBatchSize, nil))
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("accuracy on %q: %s", ds.Name, acc)
		return &acc, nil
	}
	if cfg.EvalOnTrain {
		if results.TrainAccuracy, err = evaluate(trainDS); err != nil {
			return nil, err
		}
	}
	if cfg.EvalOnTest && testDS != nil {
		if results.TestAccuracy, err = evaluate(testDS); err != nil {
			return nil, err
		}
	}

	if cfg.ShowSample {
		sampleDS := testDS
		if sampleDS == nil || sampleDS.Len() == 0 {
			sampleDS = trainDS
		}
		idx := rng.Intn(sampleDS.Len())
		sample := &sampleDS.Samples[idx]
		prediction, err := predictor.Predict(sample.Image[:])
		if err != nil {
			return nil, err
		}
		results.Sample = &SampleResult{
			Split:      sampleDS.Split,
			Index:      idx,
			Label:      sample.Label,
			Image:      sample.Image[:],
			Prediction: prediction,
		}
	}
	return results, nil
}
