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

package tensors

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	z := Zeros(shapes.Make(2, 3))
	assert.Equal(t, 6, z.Size())
	assert.Equal(t, 0, z.CountNonZero())

	o := Ones(shapes.Make(2, 3))
	assert.Equal(t, 6, o.CountNonZero())
	assert.Equal(t, 6.0, o.Sum())

	f := FromFlat(shapes.Make(4), []float64{1, -2, 0, 3})
	assert.Equal(t, -2.0, f.At(1))
	assert.Equal(t, 3, f.CountNonZero())

	exception := exceptions.Try(func() { FromFlat(shapes.Make(3), []float64{1, 2}) })
	require.NotNil(t, exception, "FromFlat with mismatched size should panic")
}

func TestKernels(t *testing.T) {
	a := FromFlat(shapes.Make(4), []float64{1, -2, 0, 3})
	abs := a.Abs()
	assert.Equal(t, []float64{1, 2, 0, 3}, abs.Flat())
	// Abs must not mutate its input.
	assert.Equal(t, []float64{1, -2, 0, 3}, a.Flat())

	mask := FromFlat(shapes.Make(4), []float64{1, 0, 1, 1})
	masked := a.Mul(mask)
	assert.Equal(t, []float64{1, 0, 0, 3}, masked.Flat())

	assert.Equal(t, -2.0, a.Min())
	assert.Equal(t, 3.0, a.Max())
	assert.Equal(t, 2.0, a.Sum())
}

func TestCloneAndEqual(t *testing.T) {
	a := FromFlat(shapes.Make(2, 2), []float64{1, 2, 3, 4})
	b := a.Clone()
	assert.True(t, a.Equal(b))
	b.Set(0, 7)
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(FromFlat(shapes.Make(4), []float64{1, 2, 3, 4})))
}

func TestGobSerialization(t *testing.T) {
	a := FromFlat(shapes.Make(2, 3), []float64{1, 2, 3, 4, 5, 6})
	var buf bytes.Buffer
	require.NoError(t, a.GobSerialize(gob.NewEncoder(&buf)))
	b, err := GobDeserialize(gob.NewDecoder(&buf))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}
