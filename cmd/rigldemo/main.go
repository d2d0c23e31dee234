/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// rigldemo sparse-trains a linear regression on synthetic data, end to end:
// the true weight vector is itself sparse, and the dynamic prune/grow engine
// has to discover which connections matter while holding the parameter count
// at the target sparsity throughout.
//
// Example:
//
//	go run ./cmd/rigldemo --sparsity=0.9 --steps=2000 --update_frequency=50
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/rigl/ml/context"
	"github.com/gomlx/rigl/ml/sparsity"
	"github.com/gomlx/rigl/ml/train"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

var (
	flagFeatures     = flag.Int("features", 100, "Number of input features (weights to train).")
	flagSamples      = flag.Int("samples", 512, "Number of synthetic training samples.")
	flagSteps        = flag.Int("steps", 2000, "Training steps.")
	flagSparsity     = flag.Float64("sparsity", 0.9, "Target weight sparsity, in [0, 1).")
	flagDropFraction = flag.Float64("drop_fraction", 0.3, "Initial fraction of active connections dropped per update, annealed to 0.")
	flagFrequency    = flag.Int64("update_frequency", 50, "Steps between mask updates.")
	flagLearningRate = flag.Float64("learning_rate", 0.2, "SGD learning rate.")
	flagMomentum     = flag.Float64("momentum", 0.9, "SGD momentum coefficient.")
	flagSeed         = flag.Int64("seed", 42, "Seed for data generation and mask decisions.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	rng := rand.New(rand.NewSource(uint64(*flagSeed)))
	numFeatures, numSamples := *flagFeatures, *flagSamples

	// Ground truth: a sparse weight vector, denser than the target sparsity,
	// so the engine has something to find.
	trueWeights := mat.NewVecDense(numFeatures, nil)
	for ii := 0; ii < numFeatures; ii++ {
		if rng.Float64() < (1-*flagSparsity)*0.8 {
			trueWeights.SetVec(ii, rng.NormFloat64())
		}
	}
	inputs := mat.NewDense(numSamples, numFeatures, nil)
	for ii := 0; ii < numSamples; ii++ {
		for jj := 0; jj < numFeatures; jj++ {
			inputs.Set(ii, jj, rng.NormFloat64())
		}
	}
	labels := mat.NewVecDense(numSamples, nil)
	labels.MulVec(inputs, trueWeights)

	ctx := context.NewContext()
	weights := ctx.In("model").VariableWithValue("weights",
		tensors.FromShape(shapes.Make(numFeatures)))
	for ii := 0; ii < numFeatures; ii++ {
		weights.Value().Set(ii, 0.1*rng.NormFloat64())
	}

	pruner := sparsity.RiGL(
		sparsity.Cosine(*flagDropFraction).
			End(int64(*flagSteps) * 3 / 4).
			Frequency(*flagFrequency).
			Done()).
		Sparsity(*flagSparsity).
		Seed(*flagSeed).
		Momentum(*flagMomentum > 0).
		ResetMomentum(*flagMomentum > 0).
		Done()
	config := sparsity.NewConfig().Add(pruner, weights)
	config.CreateSlots(ctx)

	opt := train.SparseTraining(
		train.SGD().LearningRate(*flagLearningRate).Momentum(*flagMomentum).Done(),
		config)

	initialLoss := meanSquaredError(inputs, labels, weights.Value())
	bar := progressbar.Default(int64(*flagSteps), "training")
	grad := tensors.FromShape(weights.Shape())
	for step := 0; step < *flagSteps; step++ {
		lossGradient(inputs, labels, weights.Value(), grad)
		opt.Apply(ctx, []*context.Variable{weights}, []*tensors.Tensor{grad})
		must.M(bar.Add(1))
	}
	must.M(bar.Finish())

	mask := pruner.GetSlot(ctx, weights, sparsity.MaskSlotName)
	printSummary(summary{
		features:    numFeatures,
		active:      mask.CountNonZero(),
		trueActive:  nonZeroVec(trueWeights),
		initialLoss: initialLoss,
		finalLoss:   meanSquaredError(inputs, labels, weights.Value()),
	})
}

// lossGradient writes the MSE gradient 2/n * Xᵀ(Xw - y) into grad.
func lossGradient(inputs *mat.Dense, labels *mat.VecDense, weights, grad *tensors.Tensor) {
	numSamples, numFeatures := inputs.Dims()
	w := mat.NewVecDense(numFeatures, weights.CloneFlat())
	residual := mat.NewVecDense(numSamples, nil)
	residual.MulVec(inputs, w)
	residual.SubVec(residual, labels)
	g := mat.NewVecDense(numFeatures, nil)
	g.MulVec(inputs.T(), residual)
	g.ScaleVec(2/float64(numSamples), g)
	copy(grad.Flat(), g.RawVector().Data)
}

func meanSquaredError(inputs *mat.Dense, labels *mat.VecDense, weights *tensors.Tensor) float64 {
	numSamples, numFeatures := inputs.Dims()
	w := mat.NewVecDense(numFeatures, weights.CloneFlat())
	residual := mat.NewVecDense(numSamples, nil)
	residual.MulVec(inputs, w)
	residual.SubVec(residual, labels)
	return mat.Dot(residual, residual) / float64(numSamples)
}

func nonZeroVec(v *mat.VecDense) int {
	count := 0
	for ii := 0; ii < v.Len(); ii++ {
		if v.AtVec(ii) != 0 {
			count++
		}
	}
	return count
}

type summary struct {
	features    int
	active      int
	trueActive  int
	initialLoss float64
	finalLoss   float64
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle = lipgloss.NewStyle().Width(24).Foreground(lipgloss.Color("8"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

func printSummary(s summary) {
	row := func(name, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(name), value)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Sparse training summary"),
		row("Weights", humanize.Comma(int64(s.features))),
		row("Active connections", fmt.Sprintf("%s (%.1f%%)",
			humanize.Comma(int64(s.active)), 100*float64(s.active)/float64(s.features))),
		row("True non-zeros", humanize.Comma(int64(s.trueActive))),
		row("Initial loss", fmt.Sprintf("%.4f", s.initialLoss)),
		row("Final loss", fmt.Sprintf("%.4f", s.finalLoss)),
	)
	fmt.Fprintln(os.Stdout, boxStyle.Render(body))
}
