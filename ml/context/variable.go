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
	"fmt"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
)

// Variable is a tensor value stored in a Context, identified by its scope and
// name. It's commonly used to store the weights of an ML model, and the
// per-weight auxiliary tensors trainers keep (masks, momentum).
type Variable struct {
	ctx         *Context
	name, scope string

	// Trainable indicates whether the variable is trainable. If set to false it
	// won't be touched by trainers of the model.
	Trainable bool

	shape shapes.Shape
	value *tensors.Tensor
}

// Name of the variable within its scope.
func (v *Variable) Name() string {
	v.AssertValid()
	return v.name
}

// Scope where the variable was created.
func (v *Variable) Scope() string {
	v.AssertValid()
	return v.scope
}

// String implements stringer.
func (v *Variable) String() string {
	if v == nil {
		return "INVALID (NIL) VARIABLE"
	}
	return fmt.Sprintf("%s%s%s", v.scope, ScopeSeparator, v.name)
}

// AssertValid panics if the variable is in an invalid state: nil or without a shape.
func (v *Variable) AssertValid() {
	if v == nil {
		Panicf("context.Variable is nil")
	}
}

// Shape returns the variable shape.
func (v *Variable) Shape() shapes.Shape {
	v.AssertValid()
	return v.shape
}

// Value returns the tensor holding the variable value. Use this to manipulate
// the value in Go.
func (v *Variable) Value() *tensors.Tensor {
	v.AssertValid()
	return v.value
}

// SetValue updates the tensor holding the variable value. The new value must
// have the same shape the variable was created with.
func (v *Variable) SetValue(value *tensors.Tensor) {
	v.AssertValid()
	if value == nil {
		Panicf("context: SetValue on variable %q given a nil value", v)
	}
	if !value.Shape().Equal(v.shape) {
		Panicf("context: SetValue on variable %q with shape %s, but variable has shape %s",
			v, value.Shape(), v.shape)
	}
	v.value = value
}

// SetTrainable sets the variable trainable status. Returns itself, so calls can be cascaded.
func (v *Variable) SetTrainable(trainable bool) *Variable {
	v.AssertValid()
	v.Trainable = trainable
	return v
}
