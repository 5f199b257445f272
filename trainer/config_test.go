// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/mnistmlp/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContext(t *testing.T) {
	ctx := CreateDefaultContext()
	ctx.SetParam(ParamSeed, 17)
	cfg := ConfigFromContext(ctx)
	assert.Equal(t, Config{
		BatchSize:     10,
		EvalBatchSize: 1000,
		NumEpochs:     3,
		Shuffle:       true,
		Seed:          17,
		EvalOnTrain:   true,
		EvalOnTest:    true,
		ShowSample:    true,
	}, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "adam", context.GetParamOr(ctx, optimizers.ParamOptimizer, ""))
	assert.Equal(t, 0.001, context.GetParamOr(ctx, optimizers.ParamLearningRate, 0.0))
	assert.Equal(t, model.NewMLP(), model.MLPFromContext(ctx))
}

func TestConfigFromSettings(t *testing.T) {
	ctx := CreateDefaultContext()
	paramsSet, err := commandline.ParseContextSettings(ctx, "num_epochs=1;batch_size=32;eval_batch_size=0;mlp_hidden_dims=16")
	require.NoError(t, err)
	assert.Len(t, paramsSet, 4)

	cfg := ConfigFromContext(ctx)
	assert.Equal(t, 1, cfg.NumEpochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 32, cfg.EvalBatchSize, "eval batch size defaults to the batch size")
	assert.NotZero(t, cfg.Seed, "a zero seed is replaced by a time-based one")
	assert.Equal(t, 16, model.MLPFromContext(ctx).HiddenDims)
}

func TestConfigValidate(t *testing.T) {
	valid := ConfigFromContext(CreateDefaultContext())
	for name, modify := range map[string]func(*Config){
		"batch size":      func(c *Config) { c.BatchSize = 0 },
		"eval batch size": func(c *Config) { c.EvalBatchSize = -1 },
		"epochs":          func(c *Config) { c.NumEpochs = 0 },
	} {
		cfg := valid
		modify(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}
