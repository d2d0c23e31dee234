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

// Package train implements host optimizers that collaborate with the
// sparsity engine: plain and momentum SGD, a global step counter, and the
// SparseTraining wrapper that drives the per-step mask-update protocol around
// a base optimizer.
package train

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/ml/context"
	"github.com/gomlx/rigl/ml/context/initializers"
	"github.com/gomlx/rigl/types/tensors"
)

// Optimizer applies one training step of gradients to a set of variables.
type Optimizer interface {
	// Apply updates the variables with the gradients of one training step.
	// ws and grads are parallel slices.
	Apply(ctx *context.Context, ws []*context.Variable, grads []*tensors.Tensor)

	// Clear deletes the auxiliary slot variables kept by the optimizer.
	Clear(ctx *context.Context)
}

// GlobalStepVariableName as stored in context.Context, usually in the root
// scope -- but depends on the caller.
const GlobalStepVariableName = "global_step"

// GetGlobalStepVar returns the global step counter variable, creating it
// (initialized with 0) if not already there.
func GetGlobalStepVar(ctx *context.Context) *context.Variable {
	return ctx.Checked(false).
		VariableWithValue(GlobalStepVariableName, tensors.Scalar(0)).
		SetTrainable(false)
}

// GetGlobalStep returns the current global step value. It creates the global
// step variable if it does not yet exist.
func GetGlobalStep(ctx *context.Context) int64 {
	return int64(GetGlobalStepVar(ctx).Value().At(0))
}

// IncrementGlobalStep increments the global step counter and returns its new
// value -- the first returned value is 1.
func IncrementGlobalStep(ctx *context.Context) int64 {
	v := GetGlobalStepVar(ctx)
	step := int64(v.Value().At(0)) + 1
	v.Value().Set(0, float64(step))
	return step
}

// DeleteGlobalStep in case one wants to reset the model state, or hide how
// many steps were taken.
func DeleteGlobalStep(ctx *context.Context) {
	ctx.DeleteVariable(ctx.Scope(), GlobalStepVariableName)
}

// MomentumSlotName of the buffer kept per variable by momentum SGD. Shared
// with the sparsity engine, which zeroes it at regrown positions when
// configured to.
const MomentumSlotName = "momentum"

// SGDDefaultLearningRate is the default learning rate used by SGD.
const SGDDefaultLearningRate = 0.1

// SGDConfig is the configuration of an SGD optimizer under construction.
// Create with SGD, adjust, then call Done.
type SGDConfig struct {
	learningRate float64
	momentum     float64
}

// SGD returns the configuration for a stochastic gradient descent optimizer,
// plain by default: LearningRate(SGDDefaultLearningRate), Momentum(0).
func SGD() *SGDConfig {
	return &SGDConfig{learningRate: SGDDefaultLearningRate}
}

// LearningRate sets the learning rate. Must be > 0.
func (c *SGDConfig) LearningRate(lr float64) *SGDConfig {
	c.learningRate = lr
	return c
}

// Momentum sets the momentum coefficient, in [0, 1). 0 disables the momentum
// buffer entirely.
func (c *SGDConfig) Momentum(mu float64) *SGDConfig {
	c.momentum = mu
	return c
}

// Done validates the configuration and returns the Optimizer. It panics on
// invalid parameters.
func (c *SGDConfig) Done() Optimizer {
	if c.learningRate <= 0 {
		Panicf("SGD learning rate must be > 0, got %g", c.learningRate)
	}
	if c.momentum < 0 || c.momentum >= 1 {
		Panicf("SGD momentum must be in [0, 1), got %g", c.momentum)
	}
	return &sgd{cfg: *c}
}

// sgd implements Optimizer: w -= lr * m, with m = mu*m + grad when momentum
// is enabled, m = grad otherwise.
type sgd struct {
	cfg SGDConfig
}

func (o *sgd) Apply(ctx *context.Context, ws []*context.Variable, grads []*tensors.Tensor) {
	for ii, w := range ws {
		grad := grads[ii]
		weight := w.Value()
		if o.cfg.momentum > 0 {
			momentum := ctx.SlotVariable(w, MomentumSlotName, initializers.Zero).Value()
			for jj := 0; jj < weight.Size(); jj++ {
				m := o.cfg.momentum*momentum.At(jj) + grad.At(jj)
				momentum.Set(jj, m)
				weight.Set(jj, weight.At(jj)-o.cfg.learningRate*m)
			}
			continue
		}
		for jj := 0; jj < weight.Size(); jj++ {
			weight.Set(jj, weight.At(jj)-o.cfg.learningRate*grad.At(jj))
		}
	}
}

func (o *sgd) Clear(ctx *context.Context) {
	if o.cfg.momentum == 0 {
		return
	}
	var trainable []*context.Variable
	ctx.EnumerateVariables(func(v *context.Variable) {
		if v.Trainable {
			trainable = append(trainable, v)
		}
	})
	for _, v := range trainable {
		ctx.DeleteSlot(v, MomentumSlotName)
	}
}
