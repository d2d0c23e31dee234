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

	"github.com/gomlx/rigl/ml/context/initializers"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotVariables(t *testing.T) {
	ctx := NewContext()
	w := ctx.In("layer").VariableWithShape("weights", shapes.Make(3, 4))

	slot := ctx.SlotVariable(w, "momentum", initializers.Zero)
	assert.Equal(t, "weights_momentum", slot.Name())
	assert.Equal(t, "/optimizers/layer", slot.Scope())
	assert.False(t, slot.Trainable)
	assert.True(t, slot.Shape().Equal(w.Shape()))

	// Create-or-reuse: a second request returns the same variable.
	assert.Same(t, slot, ctx.SlotVariable(w, "momentum", initializers.Zero))
	assert.Same(t, slot, ctx.InspectSlot(w, "momentum"))

	// Slots of different variables with the same name never collide.
	w2 := ctx.In("layer").VariableWithShape("bias", shapes.Make(4))
	slot2 := ctx.SlotVariable(w2, "momentum", initializers.Zero)
	assert.NotSame(t, slot, slot2)

	assert.Nil(t, ctx.InspectSlot(w, "mask"))
	ctx.DeleteSlot(w, "momentum")
	assert.Nil(t, ctx.InspectSlot(w, "momentum"))
}

func TestSlotVariableWithValueAtRoot(t *testing.T) {
	ctx := NewContext()
	w := ctx.VariableWithValue("w", tensors.Ones(shapes.Make(2)))
	slot := ctx.SlotVariableWithValue(w, "mask", tensors.FromFlat(shapes.Make(2), []float64{1, 0}))
	assert.Equal(t, "/optimizers", slot.Scope())
	require.NotNil(t, ctx.InspectSlot(w, "mask"))
	assert.Equal(t, []float64{1, 0}, slot.Value().Flat())
}
