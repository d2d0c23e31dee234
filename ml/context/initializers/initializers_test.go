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

package initializers

import (
	"testing"

	"github.com/gomlx/rigl/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroAndOne(t *testing.T) {
	shape := shapes.Make(3, 2)
	assert.Equal(t, 0, Zero(shape).CountNonZero())
	assert.Equal(t, 6, One(shape).CountNonZero())
}

func TestRandomNormalFn(t *testing.T) {
	shape := shapes.Make(100)
	init1 := RandomNormalFn(42, 0.1)
	init2 := RandomNormalFn(42, 0.1)
	a, b := init1(shape), init2(shape)
	require.True(t, a.Equal(b), "same seed must yield identical draws")

	// The stream advances between variables.
	c := init1(shape)
	assert.False(t, a.Equal(c))

	// Different seed, different values.
	d := RandomNormalFn(43, 0.1)(shape)
	assert.False(t, a.Equal(d))

	// Zero stddev degenerates to zeros.
	z := RandomNormalFn(42, 0)(shape)
	assert.Equal(t, 0, z.CountNonZero())
}

func TestRandomUniformFn(t *testing.T) {
	shape := shapes.Make(1000)
	init := RandomUniformFn(17, -0.5, 0.5)
	a := init(shape)
	assert.GreaterOrEqual(t, a.Min(), -0.5)
	assert.Less(t, a.Max(), 0.5)

	b := RandomUniformFn(17, -0.5, 0.5)(shape)
	require.True(t, a.Equal(b))
}
