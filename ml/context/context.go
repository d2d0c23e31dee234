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

// Package context defines the Context and Variable types: Context organizes
// variables into scopes and Variable manages the storage of tensor values --
// model weights, and the auxiliary state that trainers and the sparsity
// engine keep per weight (masks, momentum buffers).
//
// The Context is the variable state store: it is the only entity with
// authority to create or delete variables. Components that need per-variable
// state (an optimizer's momentum, a pruner's mask) store it as non-trainable
// variables in a parallel scope, keyed by the original variable's scope and
// name.
//
// A Context value is a thin scoped reference (similar to a current directory)
// into shared data: Context.In("layer0") returns a new reference with the
// scope pushed, sharing all variables with the original.
package context

import (
	"fmt"
	"strings"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/rigl/ml/context/initializers"
	"github.com/gomlx/rigl/types/shapes"
	"github.com/gomlx/rigl/types/tensors"
)

// VariableInitializer builds a tensor to initialize a variable of the given
// shape. It is defined in the Context.
type VariableInitializer = initializers.VariableInitializer

// Context organizes variables in scopes. The zero value is not valid, use
// NewContext.
//
// The scope, reuse and checked fields are part of the "reference" component:
// methods like In, Reuse and Checked return new references sharing the same
// underlying data.
type Context struct {
	// scope for newly created variables.
	scope string

	// reuse of variables, if set to true.
	reuse bool

	// checked access to variables: whether to check for reuse when a variable
	// already exists. If set to false, reuse is irrelevant.
	checked bool

	// initializer is used to initialize variable values for a given shape.
	initializer VariableInitializer

	data *contextData
}

// scopedVariableMap maps name to variable within one scope.
type scopedVariableMap map[string]*Variable

// contextData is shared among all Context references.
type contextData struct {
	variablesMap map[string]scopedVariableMap

	// variables in creation order, so enumeration is deterministic.
	variables []*Variable
}

// ScopeSeparator is used between levels of scope. Scope names cannot use this character.
const ScopeSeparator = "/"

// RootScope is the scope of a new Context.
const RootScope = ScopeSeparator

// NewContext constructs a new and empty context.
func NewContext() *Context {
	return &Context{
		scope:       RootScope,
		checked:     true,
		initializer: initializers.Zero,
		data: &contextData{
			variablesMap: make(map[string]scopedVariableMap),
		},
	}
}

// copy creates a copy of the Context reference, sharing the same data.
func (ctx *Context) copy() *Context {
	ctx2 := &Context{}
	*ctx2 = *ctx
	return ctx2
}

// Scope returns the full current scope path.
func (ctx *Context) Scope() string { return ctx.scope }

// In returns a new reference to the Context with the extra given scope. No
// ScopeSeparator ("/") is allowed in scope.
func (ctx *Context) In(scope string) *Context {
	if scope == "" {
		Panicf("context: cannot use empty scope")
	}
	if strings.Contains(scope, ScopeSeparator) {
		Panicf("context: cannot use separator %q in scope element %q", ScopeSeparator, scope)
	}
	var newScope string
	if ctx.scope == RootScope {
		newScope = ScopeSeparator + scope
	} else {
		newScope = ctx.scope + ScopeSeparator + scope
	}
	return ctx.InAbsPath(newScope)
}

// InAbsPath returns a new reference to the Context with the given absolute
// scope path. It must start with ScopeSeparator.
func (ctx *Context) InAbsPath(scopePath string) *Context {
	if !strings.HasPrefix(scopePath, ScopeSeparator) {
		Panicf("context: absolute scope path must start with separator %q, got %q", ScopeSeparator, scopePath)
	}
	ctx2 := ctx.copy()
	ctx2.scope = scopePath
	return ctx2
}

// EscapeScopeName replaces ScopeSeparator in the string by "_".
func EscapeScopeName(scopeName string) string {
	return strings.ReplaceAll(scopeName, ScopeSeparator, "_")
}

// Reuse returns a new reference to the Context set to reuse variables.
// If checked is false, this setting is irrelevant.
func (ctx *Context) Reuse() *Context {
	if ctx.reuse {
		return ctx
	}
	ctx2 := ctx.copy()
	ctx2.reuse = true
	return ctx2
}

// IsReuse returns whether Context is marked for reuse.
func (ctx *Context) IsReuse() bool { return ctx.reuse }

// Checked returns a new reference to the Context with the checked flag set
// accordingly. When checked is false, variable creation methods return the
// existing variable when there is one, and create it otherwise.
func (ctx *Context) Checked(checked bool) *Context {
	if ctx.checked == checked {
		return ctx
	}
	ctx2 := ctx.copy()
	ctx2.checked = checked
	return ctx2
}

// IsChecked returns whether Context is checking reuse rules.
func (ctx *Context) IsChecked() bool { return ctx.checked }

// WithInitializer returns a new reference to the Context with the given
// initializer set as default for new variables.
func (ctx *Context) WithInitializer(initializer VariableInitializer) *Context {
	if initializer == nil {
		Panicf("context: WithInitializer given a nil initializer")
	}
	ctx2 := ctx.copy()
	ctx2.initializer = initializer
	return ctx2
}

// findVariableInScope or nil if not found.
func (ctx *Context) findVariableInScope(name string) *Variable {
	scopeVars, ok := ctx.data.variablesMap[ctx.scope]
	if !ok {
		return nil
	}
	return scopeVars[name]
}

func (ctx *Context) setVariableInScope(name string, v *Variable) {
	vSet, found := ctx.data.variablesMap[ctx.scope]
	if !found {
		vSet = make(scopedVariableMap)
		ctx.data.variablesMap[ctx.scope] = vSet
	}
	vSet[name] = v
	ctx.data.variables = append(ctx.data.variables, v)
}

// checkCreate validates the reuse rules for creating (or reusing) a variable.
// It returns the pre-existing variable, if there is one.
func (ctx *Context) checkCreate(name string) *Variable {
	v := ctx.findVariableInScope(name)
	if ctx.checked && ctx.reuse && v == nil {
		Panicf("context: requested variable %q in scope %q with Context.Reuse set, but variable does not exist",
			name, ctx.scope)
	}
	if ctx.checked && !ctx.reuse && v != nil {
		Panicf("context: variable %q for scope %q already exists -- if this was deliberate, use "+
			"Context.Reuse() or Context.Checked(false)", name, ctx.scope)
	}
	return v
}

// VariableWithShape creates or returns an existing variable with the given
// shape in the current scope. New variables are initialized with the current
// variable initializer set for the context, and marked trainable by default.
func (ctx *Context) VariableWithShape(name string, shape shapes.Shape) *Variable {
	v := ctx.checkCreate(name)
	if v != nil {
		if !shape.Equal(v.shape) {
			Panicf("context: requested to reuse variable %q in scope %q, but with different shape from original: "+
				"previous shape=%s, requested shape=%s", name, ctx.scope, v.shape, shape)
		}
		return v
	}
	v = &Variable{
		ctx:       ctx,
		name:      name,
		scope:     ctx.scope,
		shape:     shape.Clone(),
		value:     ctx.initializer(shape),
		Trainable: true,
	}
	ctx.setVariableInScope(name, v)
	return v
}

// VariableWithValue creates or returns an existing variable, initialized with
// the given tensor value, in the current scope. New variables are marked
// trainable by default.
func (ctx *Context) VariableWithValue(name string, value *tensors.Tensor) *Variable {
	if value == nil {
		Panicf("context: VariableWithValue(%q) given a nil value", name)
	}
	v := ctx.checkCreate(name)
	if v != nil {
		if !value.Shape().Equal(v.shape) {
			Panicf("context: requested to reuse variable %q in scope %q, but with value of different shape from "+
				"original: previous shape=%s, value shape=%s", name, ctx.scope, v.shape, value.Shape())
		}
		return v
	}
	v = &Variable{
		ctx:       ctx,
		name:      name,
		scope:     ctx.scope,
		shape:     value.Shape().Clone(),
		value:     value,
		Trainable: true,
	}
	ctx.setVariableInScope(name, v)
	return v
}

// InspectVariable returns the variable with the given name in the given
// scope, or nil if it doesn't exist. The scope is given in absolute form.
func (ctx *Context) InspectVariable(scope, name string) *Variable {
	scopeVars, ok := ctx.data.variablesMap[scope]
	if !ok {
		return nil
	}
	return scopeVars[name]
}

// DeleteVariable removes the variable with the given name in the given scope,
// if it exists.
func (ctx *Context) DeleteVariable(scope, name string) {
	scopeVars, ok := ctx.data.variablesMap[scope]
	if !ok {
		return
	}
	v, ok := scopeVars[name]
	if !ok {
		return
	}
	delete(scopeVars, name)
	for ii, other := range ctx.data.variables {
		if other == v {
			ctx.data.variables = append(ctx.data.variables[:ii], ctx.data.variables[ii+1:]...)
			break
		}
	}
}

// EnumerateVariables will call fn for each variable in the context, in
// creation order -- so visitation is deterministic.
func (ctx *Context) EnumerateVariables(fn func(v *Variable)) {
	for _, v := range ctx.data.variables {
		fn(v)
	}
}

// NumVariables return the number of variables in this Context.
func (ctx *Context) NumVariables() int {
	return len(ctx.data.variables)
}

// NumParameters returns the summed sizes of all variables.
func (ctx *Context) NumParameters() int {
	total := 0
	ctx.EnumerateVariables(func(v *Variable) {
		total += v.Shape().Size()
	})
	return total
}

// String implements fmt.Stringer: used mostly for debugging.
func (ctx *Context) String() string {
	return fmt.Sprintf("Context[scope=%q, %d variables]", ctx.scope, ctx.NumVariables())
}
