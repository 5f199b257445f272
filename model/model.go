// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package model defines the digit classifier models and their loss.
//
// Models output log-probabilities (log-softmax) over the digit classes, and are trained with the
// negative log-likelihood loss (NegativeLogLikelihood).
package model

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/mnistmlp/mnist"
)

const (
	// ParamNumHiddenLayers is the context hyperparameter with the number of hidden layers of the MLP.
	ParamNumHiddenLayers = "mlp_num_hidden_layers"

	// ParamHiddenDims is the context hyperparameter with the width of each hidden layer of the MLP.
	ParamHiddenDims = "mlp_hidden_dims"

	// Scope under which model variables are created.
	Scope = "model"
)

// Classifier is anything that can compute class log-probabilities for a batch of images.
type Classifier interface {
	// Forward takes images shaped [batchSize, ...] (any shape that flattens to mnist.NumPixels per example)
	// and returns log-probabilities shaped [batchSize, numClasses].
	Forward(ctx *context.Context, images *graph.Node) (logProbs *graph.Node)
}

// MLP is a multi-layer perceptron: HiddenLayers fully connected layers of HiddenDims units each with
// ReLU activations, followed by a fully connected output layer with NumClasses units and log-softmax.
type MLP struct {
	HiddenLayers, HiddenDims, NumClasses int
}

var _ Classifier = (*MLP)(nil)

// NewMLP returns the default configuration: 784 -> 64 -> 64 -> 64 -> 10.
func NewMLP() *MLP {
	return &MLP{HiddenLayers: 3, HiddenDims: 64, NumClasses: mnist.NumClasses}
}

// MLPFromContext creates an MLP configured with the hyperparameters ParamNumHiddenLayers and ParamHiddenDims,
// using NewMLP defaults for the ones not set.
func MLPFromContext(ctx *context.Context) *MLP {
	m := NewMLP()
	m.HiddenLayers = context.GetParamOr(ctx, ParamNumHiddenLayers, m.HiddenLayers)
	m.HiddenDims = context.GetParamOr(ctx, ParamHiddenDims, m.HiddenDims)
	return m
}

// Forward implements Classifier.
func (m *MLP) Forward(ctx *context.Context, images *graph.Node) *graph.Node {
	if m.HiddenLayers < 0 || m.HiddenDims <= 0 || m.NumClasses <= 1 {
		exceptions.Panicf("invalid MLP configuration %+v", *m)
	}
	batchSize := images.Shape().Dimensions[0]
	x := graph.Reshape(images, batchSize, -1)
	if x.Shape().Dimensions[1] != mnist.NumPixels {
		exceptions.Panicf("MLP expects images with %d pixels, got shape %s", mnist.NumPixels, images.Shape())
	}

	layerIdx := 0
	nextCtx := func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}
	for range m.HiddenLayers {
		x = layers.Dense(nextCtx("dense"), x, true, m.HiddenDims)
		x = activations.Relu(x)
	}
	logits := layers.Dense(nextCtx("dense"), x, true, m.NumClasses)
	logits.AssertDims(batchSize, m.NumClasses)
	return graph.LogSoftmax(logits, -1)
}

// HasVariables reports whether model variables were already created in ctx, in which case
// new graphs must be built with ctx.Reuse().
func HasVariables(ctx *context.Context) bool {
	for range ctx.In(Scope).IterVariablesInScope() {
		return true
	}
	return false
}

// NumParameters returns the number of scalar parameters of the model variables in ctx.
func NumParameters(ctx *context.Context) int {
	total := 0
	for v := range ctx.In(Scope).IterVariablesInScope() {
		total += v.Shape().Size()
	}
	return total
}

// ModelFn adapts a Classifier to a train.ModelFn: it takes the images as the only input and returns
// the log-probabilities as the only output.
// Variables are created under the Scope scope.
func ModelFn(c Classifier) train.ModelFn {
	return func(ctx *context.Context, _ any, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{c.Forward(ctx.In(Scope), inputs[0])}
	}
}
