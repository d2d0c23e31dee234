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

package context

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/ml/context/initializers"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopes(t *testing.T) {
	ctx := NewContext()
	assert.Equal(t, RootScope, ctx.Scope())
	assert.Equal(t, "/a/b", ctx.In("a").In("b").Scope())
	assert.Equal(t, "/x", ctx.InAbsPath("/x").Scope())

	// Scoped references share the underlying data.
	ctx.In("a").VariableWithShape("w", shapes.Make(2))
	require.NotNil(t, ctx.InspectVariable("/a", "w"))

	require.NotNil(t, exceptions.Try(func() { ctx.In("a/b") }))
	require.NotNil(t, exceptions.Try(func() { ctx.InAbsPath("no-leading-separator") }))
}

func TestVariableCreationAndReuse(t *testing.T) {
	ctx := NewContext()
	v := ctx.In("layer").VariableWithShape("w", shapes.Make(2, 3))
	assert.Equal(t, "w", v.Name())
	assert.Equal(t, "/layer", v.Scope())
	assert.True(t, v.Trainable)
	assert.Equal(t, 0, v.Value().CountNonZero(), "default initializer is Zero")

	// Duplicated creation without Reuse panics.
	require.NotNil(t, exceptions.Try(func() { ctx.In("layer").VariableWithShape("w", shapes.Make(2, 3)) }))

	// Reuse returns the same variable.
	v2 := ctx.In("layer").Reuse().VariableWithShape("w", shapes.Make(2, 3))
	assert.Same(t, v, v2)

	// Reuse with a different shape panics.
	require.NotNil(t, exceptions.Try(func() { ctx.In("layer").Reuse().VariableWithShape("w", shapes.Make(3)) }))

	// Reuse of a non-existent variable panics.
	require.NotNil(t, exceptions.Try(func() { ctx.Reuse().VariableWithShape("nope", shapes.Make(1)) }))

	// Checked(false) quietly creates-or-reuses.
	v3 := ctx.In("layer").Checked(false).VariableWithShape("w", shapes.Make(2, 3))
	assert.Same(t, v, v3)
}

func TestVariableWithValue(t *testing.T) {
	ctx := NewContext()
	value := tensors.FromFlat(shapes.Make(3), []float64{1, 2, 3})
	v := ctx.VariableWithValue("bias", value)
	assert.True(t, v.Value().Equal(value))

	// SetValue with wrong shape panics.
	require.NotNil(t, exceptions.Try(func() { v.SetValue(tensors.Zeros(shapes.Make(4))) }))
	v.SetValue(tensors.Zeros(shapes.Make(3)))
	assert.Equal(t, 0, v.Value().CountNonZero())
}

func TestWithInitializer(t *testing.T) {
	ctx := NewContext()
	v := ctx.WithInitializer(initializers.One).VariableWithShape("w", shapes.Make(4))
	assert.Equal(t, 4, v.Value().CountNonZero())
}

func TestEnumerateAndDelete(t *testing.T) {
	ctx := NewContext()
	ctx.In("a").VariableWithShape("w0", shapes.Make(2))
	ctx.In("b").VariableWithShape("w1", shapes.Make(3))
	assert.Equal(t, 2, ctx.NumVariables())
	assert.Equal(t, 5, ctx.NumParameters())

	var names []string
	ctx.EnumerateVariables(func(v *Variable) { names = append(names, v.Name()) })
	assert.Equal(t, []string{"w0", "w1"}, names)

	ctx.DeleteVariable("/a", "w0")
	assert.Nil(t, ctx.InspectVariable("/a", "w0"))
	assert.Equal(t, 1, ctx.NumVariables())

	// Deleting a non-existent variable is a no-op.
	ctx.DeleteVariable("/a", "w0")
	assert.Equal(t, 1, ctx.NumVariables())
}
