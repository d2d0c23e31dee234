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

import "fmt"

// The sparsity engine has no transient or retriable failures: every operation
// is a deterministic tensor computation, so an error is always a programming
// or configuration mistake. They are thrown as exceptions (panics) with one
// of the two types below, and can be recovered with
// exceptions.TryCatch[*ConfigurationError] (or [*UnconfiguredStateError]).

// ConfigurationError reports invalid construction parameters: unsupported
// pooling kind, unrecognized grow-init policy, sparsity outside [0, 1),
// non-positive target active count for a given shape, and the like.
// It is thrown eagerly at construction time, never inside the per-step path.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// configErrorf throws a *ConfigurationError with a formatted message.
func configErrorf(format string, args ...any) {
	panic(&ConfigurationError{Message: fmt.Sprintf(format, args...)})
}

// UnconfiguredStateError reports an operation invoked on a variable with no
// allocated slots: the engine never auto-allocates outside CreateSlots.
type UnconfiguredStateError struct {
	Message string
}

// Error implements the error interface.
func (e *UnconfiguredStateError) Error() string {
	return "unconfigured state: " + e.Message
}

// unconfiguredErrorf throws a *UnconfiguredStateError with a formatted message.
func unconfiguredErrorf(format string, args ...any) {
	panic(&UnconfiguredStateError{Message: fmt.Sprintf(format, args...)})
}
