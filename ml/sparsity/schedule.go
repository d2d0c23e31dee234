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

import "math"

// This file implements update schedules: pure functions of the training step
// that decide on which steps a mask update happens and what fraction of the
// active connections is dropped (and regrown) on that step.

// Schedule decides when mask updates happen and how aggressive they are.
//
// Implementations must be pure functions of step: two engines fed the same
// step sequence make identical scheduling decisions, independent of execution
// order or batching.
type Schedule interface {
	// ShouldUpdate returns whether a mask update happens at the given step.
	ShouldUpdate(step int64) bool

	// DropFraction returns the fraction (in [0, 1]) of active connections to
	// drop -- and regrow -- at the given step.
	DropFraction(step int64) float64
}

// UnsetEnd can be given to ScheduleConfig.End for a schedule that never stops
// updating. Only the constant schedule accepts it.
const UnsetEnd = int64(-1)

// ScheduleConfig holds the configuration of a schedule under construction.
// Create with Constant or Cosine, adjust, then call Done. Done throws a
// *ConfigurationError on invalid parameters.
type ScheduleConfig struct {
	fraction  float64
	begin     int64
	end       int64
	frequency int64
	annealed  bool
}

// Constant returns the configuration for a schedule with a constant drop
// fraction, applied every `frequency` steps within [begin, end].
//
// Defaults: Begin(0), End(UnsetEnd), Frequency(1).
func Constant(fraction float64) *ScheduleConfig {
	return &ScheduleConfig{
		fraction:  fraction,
		begin:     0,
		end:       UnsetEnd,
		frequency: 1,
	}
}

// Cosine returns the configuration for a schedule whose drop fraction anneals
// from initialFraction at begin down to 0 at end, following
// initialFraction/2 * (1 + cos(pi*(step-begin)/(end-begin))).
//
// It requires a finite End > Begin. Defaults: Begin(0), Frequency(1).
func Cosine(initialFraction float64) *ScheduleConfig {
	return &ScheduleConfig{
		fraction:  initialFraction,
		begin:     0,
		end:       UnsetEnd,
		frequency: 1,
		annealed:  true,
	}
}

// Begin sets the first step at which updates may happen. Defaults to 0.
func (c *ScheduleConfig) Begin(step int64) *ScheduleConfig {
	c.begin = step
	return c
}

// End sets the last step at which updates may happen (inclusive). For the
// constant schedule, UnsetEnd means updates never stop. Defaults to UnsetEnd.
func (c *ScheduleConfig) End(step int64) *ScheduleConfig {
	c.end = step
	return c
}

// Frequency sets the number of steps between updates. Defaults to 1.
func (c *ScheduleConfig) Frequency(steps int64) *ScheduleConfig {
	c.frequency = steps
	return c
}

// Done validates the configuration and returns the Schedule.
func (c *ScheduleConfig) Done() Schedule {
	if c.fraction < 0 || c.fraction > 1 {
		configErrorf("schedule drop fraction must be in [0, 1], got %g", c.fraction)
	}
	if c.begin < 0 {
		configErrorf("schedule begin step must be >= 0, got %d", c.begin)
	}
	if c.end != UnsetEnd && c.end < c.begin {
		configErrorf("schedule end step (%d) must be >= begin step (%d), or UnsetEnd", c.end, c.begin)
	}
	if c.annealed && (c.end == UnsetEnd || c.end == c.begin) {
		configErrorf("cosine schedule requires a finite end step > begin step, got begin=%d, end=%d",
			c.begin, c.end)
	}
	if c.frequency < 1 {
		configErrorf("schedule frequency must be >= 1, got %d", c.frequency)
	}
	cfg := *c
	if cfg.annealed {
		return &cosineSchedule{cfg}
	}
	return &constantSchedule{cfg}
}

// inWindow returns whether step falls on an update step of the schedule window.
func (c *ScheduleConfig) inWindow(step int64) bool {
	if step < c.begin || (c.end != UnsetEnd && step > c.end) {
		return false
	}
	return (step-c.begin)%c.frequency == 0
}

// constantSchedule drops a fixed fraction on every update step.
type constantSchedule struct {
	ScheduleConfig
}

func (s *constantSchedule) ShouldUpdate(step int64) bool { return s.inWindow(step) }

func (s *constantSchedule) DropFraction(step int64) float64 {
	if !s.inWindow(step) {
		return 0
	}
	return s.fraction
}

// cosineSchedule anneals the drop fraction to 0 over [begin, end], using the
// same cosine formulation as cosine learning-rate annealing.
type cosineSchedule struct {
	ScheduleConfig
}

func (s *cosineSchedule) ShouldUpdate(step int64) bool { return s.inWindow(step) }

func (s *cosineSchedule) DropFraction(step int64) float64 {
	if !s.inWindow(step) || step >= s.end {
		return 0
	}
	cycle := float64(step-s.begin) / float64(s.end-s.begin)
	return s.fraction / 2 * (1 + math.Cos(cycle*math.Pi))
}
