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
	"sort"
	"strings"

	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"golang.org/x/exp/maps"
)

// This file implements block pooling: coarsening a rank-2 tensor to one value
// per block before drop/grow selection, and broadcasting block decisions back
// to element resolution. With blocks, "position" in the selection passes means
// block index, and every element of a block shares its block's decision.

// Pooling is the reduction used to coarsen a tensor to block granularity.
type Pooling int

const (
	// PoolingAverage uses the mean of each block.
	PoolingAverage Pooling = iota

	// PoolingMax uses the maximum of each block.
	PoolingMax
)

var knownPoolings = map[string]Pooling{
	"average": PoolingAverage,
	"avg":     PoolingAverage,
	"max":     PoolingMax,
}

// PoolingFromName parses a pooling kind from its name ("average", "avg" or
// "max", case-insensitive). It throws a *ConfigurationError for anything else.
func PoolingFromName(name string) Pooling {
	p, found := knownPoolings[strings.ToLower(name)]
	if !found {
		valid := maps.Keys(knownPoolings)
		sort.Strings(valid)
		configErrorf("unsupported block pooling kind %q, valid values are %v", name, valid)
	}
	return p
}

// String implements fmt.Stringer.
func (p Pooling) String() string {
	switch p {
	case PoolingAverage:
		return "average"
	case PoolingMax:
		return "max"
	}
	return "invalid"
}

// pooledShape returns the block-grid shape of pooling t by (blockRows,
// blockCols). It throws a *ConfigurationError if the blocks don't tile the
// tensor exactly.
func pooledShape(shape shapes.Shape, blockRows, blockCols int) shapes.Shape {
	if shape.Rank() != 2 {
		configErrorf("block pooling requires a rank-2 tensor, got shape %s", shape)
	}
	rows, cols := shape.Dim(0), shape.Dim(1)
	if rows%blockRows != 0 || cols%blockCols != 0 {
		configErrorf("block size (%d, %d) does not tile tensor of shape %s", blockRows, blockCols, shape)
	}
	return shapes.Make(rows/blockRows, cols/blockCols)
}

// Pool coarsens a rank-2 tensor to one value per (blockRows x blockCols)
// block, using the given reduction. Blocks must tile the tensor exactly.
// A (1, 1) block returns a clone of the input.
func Pool(t *tensors.Tensor, blockRows, blockCols int, kind Pooling) *tensors.Tensor {
	if blockRows == 1 && blockCols == 1 {
		return t.Clone()
	}
	outShape := pooledShape(t.Shape(), blockRows, blockCols)
	out := tensors.FromShape(outShape)
	cols := t.Shape().Dim(1)
	gridCols := outShape.Dim(1)
	for bi := 0; bi < outShape.Dim(0); bi++ {
		for bj := 0; bj < gridCols; bj++ {
			var acc float64
			if kind == PoolingMax {
				acc = math.Inf(-1)
			}
			for di := 0; di < blockRows; di++ {
				for dj := 0; dj < blockCols; dj++ {
					v := t.At((bi*blockRows+di)*cols + (bj*blockCols + dj))
					if kind == PoolingMax {
						acc = math.Max(acc, v)
					} else {
						acc += v
					}
				}
			}
			if kind == PoolingAverage {
				acc /= float64(blockRows * blockCols)
			}
			out.Set(bi*gridCols+bj, acc)
		}
	}
	return out
}

// BroadcastBlocks is the inverse expansion of Pool: every element of a block
// in the returned tensor (of the given full shape) takes its block's value
// from the pooled tensor.
func BroadcastBlocks(pooled *tensors.Tensor, blockRows, blockCols int, fullShape shapes.Shape) *tensors.Tensor {
	if blockRows == 1 && blockCols == 1 {
		return pooled.Clone()
	}
	gridShape := pooledShape(fullShape, blockRows, blockCols)
	if !pooled.Shape().Equal(gridShape) {
		configErrorf("pooled tensor of shape %s does not match block grid %s for full shape %s",
			pooled.Shape(), gridShape, fullShape)
	}
	out := tensors.FromShape(fullShape)
	cols := fullShape.Dim(1)
	gridCols := gridShape.Dim(1)
	for i := 0; i < fullShape.Dim(0); i++ {
		for j := 0; j < cols; j++ {
			out.Set(i*cols+j, pooled.At((i/blockRows)*gridCols+(j/blockCols)))
		}
	}
	return out
}
