// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// mnist_mlp trains a multi-layer perceptron on MNIST, prints the last batch loss of each epoch, the
// accuracy and the prediction for one sample digit.
//
// Hyperparameters can be changed with -set, e.g.:
//
//	mnist_mlp -set="num_epochs=5;batch_size=32;learning_rate=0.003"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/mnistmlp/trainer"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDataDir   = flag.String("data", "~/work/mnist", "Directory to cache the downloaded dataset files.")
	flagVerbosity = flag.Int("verbosity", 1, "Level of verbosity, the higher the more verbose. Use -1 to disable the progress bar.")
)

func main() {
	ctx := trainer.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	_ = must.M1(commandline.ParseContextSettings(ctx, *settings))

	err := exceptions.TryCatch[error](func() {
		results := must.M1(trainer.Run(ctx, *flagDataDir, *flagVerbosity))
		fmt.Println()
		must.M(results.Report(os.Stdout))
	})
	if err != nil {
		klog.Fatalf("Error:\n%+v", err)
	}
}
