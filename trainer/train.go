// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package trainer trains and evaluates the MNIST classifier.
//
// Hyperparameters are stored in a context.Context (see CreateDefaultContext) and can be changed
// from the command line with the "-set" flag.
package trainer

import (
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/mnistmlp/internal/epochbar"
	"github.com/gomlx/mnistmlp/mnist"
	"github.com/gomlx/mnistmlp/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EpochLoss is the loss of the last batch of an epoch.
type EpochLoss struct {
	// Epoch number, starting at 1.
	Epoch int

	// Loss of the last batch of the epoch (not an average over the epoch).
	Loss float64

	// Steps is the number of batches trained in the epoch.
	Steps int
}

// Train trains the classifier c, with variables stored in ctx, over cfg.NumEpochs passes of trainDS.
//
// Each step computes fresh gradients of the negative log-likelihood on one batch and applies
// the optimizer configured in ctx (see optimizers.FromContext).
// It returns the loss of the last batch of each epoch.
func Train(backend backends.Backend, ctx *context.Context, c model.Classifier, trainDS *mnist.Dataset,
	cfg Config, showProgress bool) ([]EpochLoss, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if trainDS.Len() == 0 {
		return nil, errors.Errorf("training dataset %q is empty", trainDS.Name)
	}
	var shuffle *rand.Rand
	if cfg.Shuffle {
		shuffle = rand.New(rand.NewSource(cfg.Seed))
	}
	batches := mnist.NewBatches(trainDS, cfg.BatchSize, shuffle)

	epochLosses := make([]EpochLoss, cfg.NumEpochs)
	err := exceptions.TryCatch[error](func() {
		if model.HasVariables(ctx) {
			ctx = ctx.Reuse()
		}
		movingAccuracy := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)
		trainer := train.NewTrainer(backend, ctx, model.ModelFn(c),
			model.NegativeLogLikelihood,
			optimizers.FromContext(ctx),
			[]metrics.Interface{movingAccuracy}, // trainMetrics
			nil)                                 // evalMetrics
		loop := train.NewLoop(trainer)
		if showProgress {
			bar := epochbar.Attach(loop, cfg.NumEpochs, batches.NumBatches())
			defer bar.Stop()
		}

		// Metrics are freed after each step, so the loss is copied right away.
		loop.OnStep("last batch loss", 100, func(loop *train.Loop, stepMetrics []*tensors.Tensor) error {
			epochLoss := &epochLosses[loop.Epoch]
			epochLoss.Epoch = loop.Epoch + 1
			epochLoss.Loss = shapes.ConvertTo[float64](stepMetrics[0].Value())
			epochLoss.Steps++
			return nil
		})
		loop.OnEnd("log epochs", 100, func(loop *train.Loop, _ []*tensors.Tensor) error {
			for _, epochLoss := range epochLosses {
				klog.V(1).Infof("epoch %d: %d steps, last batch loss %.6f", epochLoss.Epoch, epochLoss.Steps, epochLoss.Loss)
			}
			klog.V(1).Infof("median train step duration: %s", loop.MedianTrainStepDuration())
			return nil
		})

		_, err := loop.RunEpochs(batches, cfg.NumEpochs)
		if err != nil {
			panic(err)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "training on %q", trainDS.Name)
	}
	return epochLosses, nil
}
