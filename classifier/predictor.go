// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier runs a trained model for inference: classifying images and measuring accuracy.
//
// Inference goes through a context.Exec that only reads the model variables, so no gradients or
// optimizer state are ever computed here.
package classifier

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/mnistmlp/mnist"
	"github.com/gomlx/mnistmlp/model"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Predictor holds a compiled model executor over the model variables in a context.
type Predictor struct {
	exec *context.Exec
}

// Prediction for one image.
type Prediction struct {
	// Class with the highest probability.
	Class int

	// Probabilities of each class, they sum to 1.
	Probabilities []float64
}

// NewPredictor creates a Predictor for the classifier c, whose variables are read from ctx
// under the model.Scope scope.
//
// If the model variables don't exist yet, they are created and initialized on first use.
func NewPredictor(backend backends.Backend, ctx *context.Context, c model.Classifier) (*Predictor, error) {
	modelCtx := ctx.In(model.Scope)
	if model.HasVariables(ctx) {
		modelCtx = modelCtx.Reuse()
	}
	exec, err := context.NewExec(backend, modelCtx,
		func(ctx *context.Context, images *graph.Node) (classes, logProbs *graph.Node) {
			logProbs = c.Forward(ctx, images)
			classes = graph.ArgMax(logProbs, -1, dtypes.Int32)
			return
		})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create model executor")
	}
	return &Predictor{exec: exec}, nil
}

// Finalize frees the compiled executor.
func (p *Predictor) Finalize() {
	p.exec.Finalize()
}

func (p *Predictor) run(images *tensors.Tensor) (classes []int32, logProbs []float32, err error) {
	err = exceptions.TryCatch[error](func() {
		classesT, logProbsT, execErr := p.exec.Exec2(images)
		if execErr != nil {
			panic(execErr)
		}
		classes = tensors.MustCopyFlatData[int32](classesT)
		logProbs = tensors.MustCopyFlatData[float32](logProbsT)
		classesT.MustFinalizeAll()
		logProbsT.MustFinalizeAll()
	})
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to execute model")
	}
	return
}

// Classify returns the predicted class of each image.
// Each image is a flattened mnist.NumPixels slice normalized to [0, 1].
func (p *Predictor) Classify(images [][]float32) ([]int, error) {
	if len(images) == 0 {
		return nil, nil
	}
	for ii, image := range images {
		if len(image) != mnist.NumPixels {
			return nil, errors.Errorf("image #%d must have %d pixels, got %d", ii, mnist.NumPixels, len(image))
		}
	}
	classes, _, err := p.run(mnist.ImagesTensor(images))
	if err != nil {
		return nil, err
	}
	result := make([]int, len(classes))
	for ii, c := range classes {
		result[ii] = int(c)
	}
	return result, nil
}

// LogProbabilities returns the model output for one image.
func (p *Predictor) LogProbabilities(image []float32) ([]float32, error) {
	if len(image) != mnist.NumPixels {
		return nil, errors.Errorf("image must have %d pixels, got %d", mnist.NumPixels, len(image))
	}
	_, logProbs, err := p.run(tensors.FromFlatDataAndDimensions(image, 1, mnist.NumPixels))
	return logProbs, err
}

// Predict classifies one image and returns the class probabilities.
func (p *Predictor) Predict(image []float32) (Prediction, error) {
	logProbs, err := p.LogProbabilities(image)
	if err != nil {
		return Prediction{}, err
	}
	probs := make([]float64, len(logProbs))
	for ii, lp := range logProbs {
		probs[ii] = math.Exp(float64(lp))
	}
	return Prediction{Class: floats.MaxIdx(probs), Probabilities: probs}, nil
}
