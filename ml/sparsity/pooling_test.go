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
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolingFromName(t *testing.T) {
	assert.Equal(t, PoolingAverage, PoolingFromName("average"))
	assert.Equal(t, PoolingAverage, PoolingFromName("AVG"))
	assert.Equal(t, PoolingMax, PoolingFromName("max"))
	require.NotNil(t, exceptions.TryCatch[*ConfigurationError](func() { PoolingFromName("median") }))
}

func TestPool(t *testing.T) {
	input := tensors.FromFlat(shapes.Make(4, 4), []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})

	avg := Pool(input, 2, 2, PoolingAverage)
	assert.True(t, avg.Shape().Equal(shapes.Make(2, 2)))
	assert.Equal(t, []float64{3.5, 5.5, 11.5, 13.5}, avg.Flat())

	max := Pool(input, 2, 2, PoolingMax)
	assert.Equal(t, []float64{6, 8, 14, 16}, max.Flat())

	// Non-square blocks.
	rows := Pool(input, 4, 1, PoolingMax)
	assert.True(t, rows.Shape().Equal(shapes.Make(1, 4)))
	assert.Equal(t, []float64{13, 14, 15, 16}, rows.Flat())

	// (1, 1) blocks are the identity, on a fresh tensor.
	same := Pool(input, 1, 1, PoolingAverage)
	assert.True(t, same.Equal(input))
	same.Set(0, -1)
	assert.Equal(t, 1.0, input.At(0))
}

func TestPoolValidation(t *testing.T) {
	input := tensors.Ones(shapes.Make(4, 4))
	require.NotNil(t, exceptions.TryCatch[*ConfigurationError](func() { Pool(input, 3, 2, PoolingAverage) }),
		"blocks must tile the tensor exactly")
	vector := tensors.Ones(shapes.Make(4))
	require.NotNil(t, exceptions.TryCatch[*ConfigurationError](func() { Pool(vector, 2, 2, PoolingAverage) }),
		"block pooling requires rank 2")
}

func TestBroadcastBlocks(t *testing.T) {
	pooled := tensors.FromFlat(shapes.Make(2, 2), []float64{1, 0, 0, 1})
	full := BroadcastBlocks(pooled, 2, 2, shapes.Make(4, 4))
	assert.Equal(t, []float64{
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 1, 1,
		0, 0, 1, 1,
	}, full.Flat())

	// Pool(max) of a broadcast block mask recovers the block mask.
	recovered := Pool(full, 2, 2, PoolingMax)
	assert.True(t, recovered.Equal(pooled))

	require.NotNil(t, exceptions.TryCatch[*ConfigurationError](func() {
		BroadcastBlocks(pooled, 2, 2, shapes.Make(4, 6))
	}), "pooled shape must match the block grid")
}
