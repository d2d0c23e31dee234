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

// Package initializers include several variable initializers, to be used with context.
// They implement the context.VariableInitializer type.
package initializers

import (
	"time"

	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// VariableInitializer builds a tensor to initialize a variable of the given
// shape. It is defined in the Context.
type VariableInitializer func(shape shapes.Shape) *tensors.Tensor

// Zero initializes variables with zero.
func Zero(shape shapes.Shape) *tensors.Tensor {
	return tensors.Zeros(shape)
}

// One initializes variables with one.
func One(shape shapes.Shape) *tensors.Tensor {
	return tensors.Ones(shape)
}

// NoSeed can be given to the random initializers below, in which case a seed
// is taken from the nanosecond clock instead.
const NoSeed = int64(0)

func newSource(initialSeed int64) rand.Source {
	if initialSeed == NoSeed {
		initialSeed = time.Now().UnixNano()
	}
	return rand.NewSource(uint64(initialSeed))
}

// RandomNormalFn returns an initializer that generates random normal values
// with the given standard deviation and mean set to 0.
//
// The initializer keeps its own random stream, seeded with initialSeed and
// advanced on each variable it initializes: the sequence of values is
// deterministic given the seed and the order of variable creation.
func RandomNormalFn(initialSeed int64, stddev float64) VariableInitializer {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: newSource(initialSeed)}
	return func(shape shapes.Shape) *tensors.Tensor {
		t := tensors.FromShape(shape)
		flat := t.Flat()
		for ii := range flat {
			flat[ii] = dist.Rand() * stddev
		}
		return t
	}
}

// RandomUniformFn return an initializer that generates random uniform values
// from [min, max).
//
// Like RandomNormalFn, the returned initializer keeps its own seeded random
// stream, advanced per variable initialized.
func RandomUniformFn(initialSeed int64, min, max float64) VariableInitializer {
	rng := rand.New(newSource(initialSeed))
	return func(shape shapes.Shape) *tensors.Tensor {
		t := tensors.FromShape(shape)
		flat := t.Flat()
		for ii := range flat {
			flat[ii] = min + rng.Float64()*(max-min)
		}
		return t
	}
}
