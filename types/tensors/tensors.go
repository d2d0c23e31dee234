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

// Package tensors implements a local, dense tensor: a flat float64 buffer
// paired with a shapes.Shape. It is the unit of data the sparsity engine
// operates on: weights, gradients, masks and momentum buffers are all
// Tensor values.
//
// Masks are ordinary tensors whose elements are exactly 0 or 1.
package tensors

import (
	"encoding/gob"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense array of float64 values with an associated shape.
// The flat buffer is laid out in row-major order.
//
// A Tensor is mutable: SetFlat and the various in-place helpers change its
// contents. It never changes shape after creation.
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// FromShape creates a zero-initialized tensor with the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	return &Tensor{
		shape: shape.Clone(),
		flat:  make([]float64, shape.Size()),
	}
}

// FromFlat creates a tensor with the given shape, taking ownership of the
// flat values. It panics if the number of values doesn't match the shape size.
func FromFlat(shape shapes.Shape, flat []float64) *Tensor {
	if len(flat) != shape.Size() {
		exceptions.Panicf("tensors.FromFlat: shape %s has size %d, but %d values given",
			shape, shape.Size(), len(flat))
	}
	return &Tensor{shape: shape.Clone(), flat: flat}
}

// FromValue creates a tensor with the given shape, every element set to value.
func FromValue(shape shapes.Shape, value float64) *Tensor {
	t := FromShape(shape)
	t.Fill(value)
	return t
}

// Zeros is an alias for FromShape: a tensor of zeros.
func Zeros(shape shapes.Shape) *Tensor { return FromShape(shape) }

// Ones creates a tensor of ones with the given shape.
func Ones(shape shapes.Shape) *Tensor { return FromValue(shape, 1) }

// Scalar creates a rank-0 tensor holding value.
func Scalar(value float64) *Tensor {
	return FromFlat(shapes.Scalar(), []float64{value})
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Size is the number of elements, the product of the dimensions.
func (t *Tensor) Size() int { return len(t.flat) }

// Flat returns the underlying flat buffer. Mutations are visible in the
// tensor; use CloneFlat if a private copy is needed.
func (t *Tensor) Flat() []float64 { return t.flat }

// CloneFlat returns a copy of the underlying flat buffer.
func (t *Tensor) CloneFlat() []float64 { return slices.Clone(t.flat) }

// At returns the element at the given flat (row-major) index.
func (t *Tensor) At(flatIdx int) float64 { return t.flat[flatIdx] }

// Set assigns the element at the given flat (row-major) index.
func (t *Tensor) Set(flatIdx int, value float64) { t.flat[flatIdx] = value }

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for ii := range t.flat {
		t.flat[ii] = value
	}
}

// CopyFrom copies the contents of other into t. Shapes must match.
func (t *Tensor) CopyFrom(other *Tensor) {
	t.assertSameShape(other, "CopyFrom")
	copy(t.flat, other.flat)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), flat: slices.Clone(t.flat)}
}

// Equal reports whether the two tensors have the same shape and bit-exact
// equal contents.
func (t *Tensor) Equal(other *Tensor) bool {
	if other == nil {
		return t == nil
	}
	return t.shape.Equal(other.shape) && slices.Equal(t.flat, other.flat)
}

// CountNonZero returns the number of elements different from 0.
func (t *Tensor) CountNonZero() (count int) {
	for _, v := range t.flat {
		if v != 0 {
			count++
		}
	}
	return
}

// Abs returns a new tensor with the element-wise absolute values.
func (t *Tensor) Abs() *Tensor {
	out := t.Clone()
	for ii, v := range out.flat {
		out.flat[ii] = math.Abs(v)
	}
	return out
}

// Mul returns the element-wise product of t and other as a new tensor.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	t.assertSameShape(other, "Mul")
	out := t.Clone()
	floats.Mul(out.flat, other.flat)
	return out
}

// Sum of all elements.
func (t *Tensor) Sum() float64 { return floats.Sum(t.flat) }

// Min returns the smallest element. It panics on an empty tensor.
func (t *Tensor) Min() float64 { return floats.Min(t.flat) }

// Max returns the largest element. It panics on an empty tensor.
func (t *Tensor) Max() float64 { return floats.Max(t.flat) }

// String pretty-prints small tensors in full, larger ones abbreviated.
func (t *Tensor) String() string {
	const maxElements = 16
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s:", t.shape)
	n := t.Size()
	if n <= maxElements {
		_, _ = fmt.Fprintf(&sb, " %v", t.flat)
	} else {
		_, _ = fmt.Fprintf(&sb, " %v...", t.flat[:maxElements])
	}
	return sb.String()
}

func (t *Tensor) assertSameShape(other *Tensor, op string) {
	if !t.shape.Equal(other.shape) {
		exceptions.Panicf("Tensor.%s: shapes don't match, %s vs %s", op, t.shape, other.shape)
	}
}

// GobSerialize the tensor (shape and values) in binary format.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) (err error) {
	err = t.shape.GobSerialize(encoder)
	if err != nil {
		return err
	}
	err = encoder.Encode(t.flat)
	if err != nil {
		err = errors.Wrapf(err, "failed to serialize Tensor values for shape %s", t.shape)
	}
	return
}

// GobDeserialize a Tensor. Returns a new Tensor or an error.
func GobDeserialize(decoder *gob.Decoder) (t *Tensor, err error) {
	var shape shapes.Shape
	shape, err = shapes.GobDeserialize(decoder)
	if err != nil {
		return
	}
	var flat []float64
	err = decoder.Decode(&flat)
	if err != nil {
		err = errors.Wrapf(err, "failed to deserialize Tensor values for shape %s", shape)
		return
	}
	if len(flat) != shape.Size() {
		err = errors.Errorf("deserialized Tensor with %d values, but shape %s requires %d",
			len(flat), shape, shape.Size())
		return
	}
	t = &Tensor{shape: shape, flat: flat}
	return
}
