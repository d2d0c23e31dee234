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

package sparsity

import (
	"math"

	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"golang.org/x/exp/rand"
)

// This file implements the sparse distribution: how the initial mask density
// is laid out for a tensor of a given shape and target sparsity.

// ActiveCount returns the number of active (unmasked) elements a tensor of
// the given size has at the given target sparsity: round((1-sparsity)*size).
func ActiveCount(size int, targetSparsity float64) int {
	return int(math.Round((1 - targetSparsity) * float64(size)))
}

// PermuteOnes builds an initial mask for the given shape with exactly
// ActiveCount(size, targetSparsity) ones, placed by a seeded uniform
// permutation of the indices -- avoiding any positional bias. The result is
// deterministic given the same seed.
//
// It throws a *ConfigurationError if targetSparsity is outside [0, 1), or if
// the resulting active count is not positive for a non-empty shape.
func PermuteOnes(shape shapes.Shape, targetSparsity float64, seed int64) *tensors.Tensor {
	if targetSparsity < 0 || targetSparsity >= 1 {
		configErrorf("target sparsity must be in [0, 1), got %g", targetSparsity)
	}
	size := shape.Size()
	active := ActiveCount(size, targetSparsity)
	if active <= 0 && size > 0 {
		configErrorf("target sparsity %g leaves no active connections for shape %s", targetSparsity, shape)
	}

	mask := tensors.Zeros(shape)
	rng := rand.New(rand.NewSource(uint64(seed)))
	for _, idx := range rng.Perm(size)[:active] {
		mask.Set(idx, 1)
	}
	return mask
}
