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

import "github.com/gomlx/rigl/types/tensors"

// Slot variables: per-variable auxiliary state kept by optimizers and the
// sparsity engine (masks, momentum buffers). A slot for variable v named
// "mask" lives in the scope SlotScope + v.Scope() under the name
// "<v.Name()>_mask", so slots never collide with model variables and there is
// exactly one slot of a given name per variable.

// SlotScope is the top-level scope under which all slot variables live.
const SlotScope = "optimizers"

// slotPath returns the absolute scope path for slots of variable v.
func slotPath(v *Variable) string {
	if v.Scope() == RootScope {
		return ScopeSeparator + SlotScope
	}
	return ScopeSeparator + SlotScope + v.Scope()
}

// SlotVariable returns the slot of the given name for variable v, creating it
// with the given initializer (and v's shape) if it doesn't exist yet. Slots
// are never trainable.
func (ctx *Context) SlotVariable(v *Variable, slotName string, initializer VariableInitializer) *Variable {
	return ctx.InAbsPath(slotPath(v)).
		Checked(false).
		WithInitializer(initializer).
		VariableWithShape(v.Name()+"_"+slotName, v.Shape()).
		SetTrainable(false)
}

// SlotVariableWithValue returns the slot of the given name for variable v,
// creating it with the given tensor value if it doesn't exist yet. Slots are
// never trainable.
func (ctx *Context) SlotVariableWithValue(v *Variable, slotName string, value *tensors.Tensor) *Variable {
	return ctx.InAbsPath(slotPath(v)).
		Checked(false).
		VariableWithValue(v.Name()+"_"+slotName, value).
		SetTrainable(false)
}

// InspectSlot returns the slot of the given name for variable v, or nil if it
// was never created.
func (ctx *Context) InspectSlot(v *Variable, slotName string) *Variable {
	return ctx.InspectVariable(slotPath(v), v.Name()+"_"+slotName)
}

// DeleteSlot removes the slot of the given name for variable v, if it exists.
func (ctx *Context) DeleteSlot(v *Variable, slotName string) {
	ctx.DeleteVariable(slotPath(v), v.Name()+"_"+slotName)
}
