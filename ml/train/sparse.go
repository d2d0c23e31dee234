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

package train

import (
	"github.com/gomlx/rigl/ml/context"
	"github.com/gomlx/rigl/ml/sparsity"
	"github.com/gomlx/rigl/types/tensors"
)

// sparseTraining wraps a base optimizer with the mask-update protocol of the
// sparsity engines in a Config.
type sparseTraining struct {
	base   Optimizer
	config *sparsity.Config
}

// SparseTraining wraps a base optimizer with dynamic sparse training: on each
// Apply, for every variable managed by the config, it runs the engine's
// Preprocess, applies the mask-restricted base update, then runs Postprocess
// -- and increments the global step once, after all variables are done.
// Variables not in the config get the plain base update.
//
// The managed variables keep their inactive weights at zero: gradients are
// masked before the base update and weights re-masked after, so the sparsity
// pattern is in force at every step, not only on update steps.
func SparseTraining(base Optimizer, config *sparsity.Config) Optimizer {
	return &sparseTraining{base: base, config: config}
}

// Apply implements Optimizer.
func (s *sparseTraining) Apply(ctx *context.Context, ws []*context.Variable, grads []*tensors.Tensor) {
	step := GetGlobalStep(ctx)
	for ii, w := range ws {
		grad := grads[ii]
		pruner, err := s.config.GetPruner(w)
		if err != nil {
			s.base.Apply(ctx, []*context.Variable{w}, []*tensors.Tensor{grad})
			continue
		}

		grad = pruner.Preprocess(ctx, w, grad, step)
		mask := pruner.GetSlot(ctx, w, sparsity.MaskSlotName)
		s.base.Apply(ctx, []*context.Variable{w}, []*tensors.Tensor{grad.Mul(mask)})
		pruner.Postprocess(ctx, w, grad, step)

		// Re-mask with the (possibly just updated) mask: dropped positions
		// are zeroed right away, grow-init values at regrown positions are
		// active and survive.
		mask = pruner.GetSlot(ctx, w, sparsity.MaskSlotName)
		w.Value().CopyFrom(w.Value().Mul(mask))
	}
	IncrementGlobalStep(ctx)
}

// Clear implements Optimizer, clearing only the base optimizer's state: masks
// survive, they are part of the model.
func (s *sparseTraining) Clear(ctx *context.Context) {
	s.base.Clear(ctx)
}
