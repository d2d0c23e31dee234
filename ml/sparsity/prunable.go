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
	"github.com/gomlx/rigl/ml/context"
	"github.com/pkg/errors"
)

// Prunability classifies how a layer's weights can be brought under sparse
// training. It is resolved once, when a Config is assembled, never per step.
type Prunability int

const (
	// NotPrunable means no weight of the layer can be pruned.
	NotPrunable Prunability = iota

	// NativelyPrunable means the layer itself declares its prunable weights,
	// by implementing PrunableLayer.
	NativelyPrunable

	// RegistrySupported means the layer kind has a selector registered in a
	// Registry that knows which of its variables to prune.
	RegistrySupported
)

// String implements fmt.Stringer.
func (p Prunability) String() string {
	switch p {
	case NotPrunable:
		return "not_prunable"
	case NativelyPrunable:
		return "natively_prunable"
	case RegistrySupported:
		return "registry_supported"
	}
	return "invalid"
}

// PrunableLayer is implemented by layers that natively declare which of their
// weight variables participate in sparse training. Biases and normalization
// parameters are usually left out.
type PrunableLayer interface {
	// PrunableWeights returns the weight variables to mask. An empty slice
	// means the layer opted out.
	PrunableWeights() []*context.Variable
}

// WeightSelector picks the prunable weight variables out of an arbitrary
// layer value for a Registry entry.
type WeightSelector func(layer any) []*context.Variable

// Registry maps layer kind names to weight selectors, for layer types that
// don't implement PrunableLayer themselves. A zero-value Registry is usable.
//
// Registries are plain values passed by reference; there is no ambient global
// registry.
type Registry struct {
	selectors map[string]WeightSelector
}

// Register installs the selector for the given layer kind, replacing any
// previous entry.
func (r *Registry) Register(kind string, selector WeightSelector) {
	if r.selectors == nil {
		r.selectors = make(map[string]WeightSelector)
	}
	r.selectors[kind] = selector
}

// Supports reports whether the registry has a selector for the layer kind.
func (r *Registry) Supports(kind string) bool {
	_, found := r.selectors[kind]
	return found
}

// PrunableWeights applies the registered selector for the layer kind. It
// returns nil if the kind is unknown.
func (r *Registry) PrunableWeights(kind string, layer any) []*context.Variable {
	selector, found := r.selectors[kind]
	if !found {
		return nil
	}
	return selector(layer)
}

// PrunabilityOf resolves the capability of a layer: natively prunable layers
// win over registry entries, and anything else is NotPrunable.
func (r *Registry) PrunabilityOf(kind string, layer any) Prunability {
	if _, ok := layer.(PrunableLayer); ok {
		return NativelyPrunable
	}
	if r.Supports(kind) {
		return RegistrySupported
	}
	return NotPrunable
}

// Config is the explicit variable-to-engine fan-out of a sparse training run:
// each weight group (typically one per layer kind or per sparsity level) gets
// its own Pruner, and every managed variable maps to exactly one of them.
//
// A Config is assembled up front, then handed by reference to the training
// loop. Build one with NewConfig and Add.
type Config struct {
	pruners map[*context.Variable]*Pruner

	// order preserves insertion order of variables, for deterministic
	// iteration in Variables.
	order []*context.Variable
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{pruners: make(map[*context.Variable]*Pruner)}
}

// Add assigns the engine to all the given variables. Re-adding a variable
// reassigns it. It returns the Config for chaining.
func (c *Config) Add(pruner *Pruner, ws ...*context.Variable) *Config {
	for _, w := range ws {
		if _, found := c.pruners[w]; !found {
			c.order = append(c.order, w)
		}
		c.pruners[w] = pruner
	}
	return c
}

// AddLayer assigns the engine to the prunable weights of a layer, as resolved
// against the registry. Layers that resolve to NotPrunable are silently
// skipped. It returns the Config for chaining.
func (c *Config) AddLayer(pruner *Pruner, registry *Registry, kind string, layer any) *Config {
	switch registry.PrunabilityOf(kind, layer) {
	case NativelyPrunable:
		c.Add(pruner, layer.(PrunableLayer).PrunableWeights()...)
	case RegistrySupported:
		c.Add(pruner, registry.PrunableWeights(kind, layer)...)
	}
	return c
}

// Variables returns the managed variables in the order they were added.
func (c *Config) Variables() []*context.Variable {
	return c.order
}

// GetPruner returns the engine managing the variable, or an error if the
// variable was never added to the Config.
func (c *Config) GetPruner(w *context.Variable) (*Pruner, error) {
	pruner, found := c.pruners[w]
	if !found {
		return nil, errors.Errorf("variable %s is not managed by this sparse training configuration", w)
	}
	return pruner, nil
}

// CreateSlots initializes the slots of every managed variable with its
// assigned engine. Idempotent.
func (c *Config) CreateSlots(ctx *context.Context) {
	for _, w := range c.order {
		c.pruners[w].CreateSlots(ctx, w)
	}
}
