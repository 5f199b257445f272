// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
)

var _ losses.LossFn = NegativeLogLikelihood

// NegativeLogLikelihood is the mean over the batch of -logProbs[label].
//
// labels[0] holds the integer class of each example, shaped [batchSize, 1] (or [batchSize]),
// and predictions[0] the log-probabilities shaped [batchSize, numClasses].
// It returns a scalar.
func NegativeLogLikelihood(labels, predictions []*Node) *Node {
	logProbs := predictions[0]
	if logProbs.Rank() != 2 {
		exceptions.Panicf("NegativeLogLikelihood: log-probabilities must be shaped [batchSize, numClasses], got %s",
			logProbs.Shape())
	}
	batchSize, numClasses := logProbs.Shape().Dimensions[0], logProbs.Shape().Dimensions[1]
	classes := labels[0]
	if classes.Shape().Size() != batchSize {
		exceptions.Panicf("NegativeLogLikelihood: %d labels for a batch of %d log-probabilities",
			classes.Shape().Size(), batchSize)
	}
	classes = Reshape(classes, batchSize)
	mask := OneHot(classes, numClasses, logProbs.DType())
	picked := ReduceSum(Mul(mask, logProbs), -1)
	return Neg(ReduceAllMean(picked))
}
