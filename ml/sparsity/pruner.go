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

// Package sparsity implements dynamic sparse training of weight tensors: a
// RigL-style prune/grow scheme that periodically drops a fraction of the
// active low-magnitude connections and grows an equal number of new ones
// chosen by gradient magnitude, holding overall sparsity per tensor constant
// across the training run.
//
// The center piece is the Pruner, the per-variable mask-update engine. It is
// driven by the host optimizer once per training step:
//
//	pruner := sparsity.RiGL(sparsity.Cosine(0.3).End(10_000).Frequency(100).Done()).
//		Sparsity(0.9).
//		Seed(42).
//		Done()
//	pruner.CreateSlots(ctx, weightVar)
//	...
//	grad = pruner.Preprocess(ctx, weightVar, grad, step)
//	// ... host optimizer applies its own (masked) weight update ...
//	pruner.Postprocess(ctx, weightVar, grad, step)
//
// All decisions -- schedule lookup, top-k tie-breaks, noise draws -- are pure
// functions of (step, seed, current state), so one pruner fed the same step
// sequence always produces the same mask trajectory, whether it's driven step
// by step or replayed in a batch.
package sparsity

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/gomlx/rigl/ml/context"
	"github.com/gomlx/rigl/ml/context/initializers"
	"github.com/gomlx/rigl/types/tensors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"
)

// Slot names allocated by the Pruner for each variable it manages.
const (
	// MaskSlotName is the 0/1 mask slot, same shape as the weight.
	MaskSlotName = "mask"

	// MomentumSlotName is the auxiliary momentum buffer slot, allocated only
	// for momentum-based configurations.
	MomentumSlotName = "momentum"
)

// GrowInit is the policy used to initialize the weight values of
// newly-grown connections.
type GrowInit int

const (
	// GrowZeros explicitly zeroes newly-grown weights (the usual choice: the
	// connection starts from nothing and is shaped by its gradient).
	GrowZeros GrowInit = iota

	// GrowRandomNormal draws newly-grown weights from a normal distribution.
	GrowRandomNormal

	// GrowRandomUniform draws newly-grown weights from a uniform distribution.
	GrowRandomUniform
)

var knownGrowInits = map[string]GrowInit{
	"zeros":          GrowZeros,
	"random_normal":  GrowRandomNormal,
	"random_uniform": GrowRandomUniform,
}

// GrowInitFromName parses a grow-init policy from its name ("zeros",
// "random_normal" or "random_uniform", case-insensitive). It throws a
// *ConfigurationError for anything else.
func GrowInitFromName(name string) GrowInit {
	policy, found := knownGrowInits[strings.ToLower(name)]
	if !found {
		valid := maps.Keys(knownGrowInits)
		sort.Strings(valid)
		configErrorf("unsupported grow-init policy %q, valid values are %v", name, valid)
	}
	return policy
}

// String implements fmt.Stringer.
func (g GrowInit) String() string {
	for name, policy := range knownGrowInits {
		if policy == g {
			return name
		}
	}
	return "invalid"
}

// Salts for the per-step random streams, so noise and reinit draws never
// share a sequence.
const (
	noiseStreamSalt  = 0x9E3779B97F4A7C15
	reinitStreamSalt = 0xC2B2AE3D27D4EB4F
)

// RiGLConfig is the construction-time configuration of a Pruner. Create with
// RiGL, adjust with the setters, then call Done. All validation happens in
// Done; nothing is checked again in the per-step path.
type RiGLConfig struct {
	sched         Schedule
	sparsity      float64
	blockRows     int
	blockCols     int
	pooling       Pooling
	seed          int64
	seedOffset    int64
	noiseStddev   float64
	growInit      GrowInit
	growInitScale float64
	momentum      bool
	resetMomentum bool
}

// RiGL returns a Pruner configuration with the given update schedule and
// defaults: sparsity 0.5, block size (1, 1), average pooling, seed 0, no
// noise, zeros grow-init, no momentum slot management.
func RiGL(sched Schedule) *RiGLConfig {
	return &RiGLConfig{
		sched:         sched,
		sparsity:      0.5,
		blockRows:     1,
		blockCols:     1,
		pooling:       PoolingAverage,
		growInit:      GrowZeros,
		growInitScale: 0.01,
	}
}

// Sparsity sets the target sparsity fraction, held constant for the whole
// run. Must be in [0, 1). Defaults to 0.5.
func (c *RiGLConfig) Sparsity(target float64) *RiGLConfig {
	c.sparsity = target
	return c
}

// BlockSize sets the block granularity: scoring and selection then happen per
// (rows x cols) block, and every element of a block shares its block's
// decision. Defaults to (1, 1), element granularity.
func (c *RiGLConfig) BlockSize(rows, cols int) *RiGLConfig {
	c.blockRows, c.blockCols = rows, cols
	return c
}

// BlockPooling sets the reduction used to coarsen weight and gradient scores
// to block granularity. Defaults to PoolingAverage.
func (c *RiGLConfig) BlockPooling(kind Pooling) *RiGLConfig {
	c.pooling = kind
	return c
}

// Seed sets the base seed of every random decision the pruner makes: initial
// mask layout, grow-score noise and randomized grow-init. Defaults to 0.
func (c *RiGLConfig) Seed(seed int64) *RiGLConfig {
	c.seed = seed
	return c
}

// SeedOffset is added to the seed; it allows a set of pruners built from one
// shared configuration to draw distinct streams. Defaults to 0.
func (c *RiGLConfig) SeedOffset(offset int64) *RiGLConfig {
	c.seedOffset = offset
	return c
}

// NoiseStddev sets the standard deviation of the additive normal noise
// applied to grow scores on update steps -- to break score ties and encourage
// exploration. The noise never touches the drop pass. 0 disables it, the
// default.
func (c *RiGLConfig) NoiseStddev(stddev float64) *RiGLConfig {
	c.noiseStddev = stddev
	return c
}

// GrowInit sets the initialization policy for newly-grown weights.
// Defaults to GrowZeros.
func (c *RiGLConfig) GrowInit(policy GrowInit) *RiGLConfig {
	c.growInit = policy
	return c
}

// GrowInitScale sets the scale of randomized grow-init draws: the standard
// deviation for GrowRandomNormal, the half-range for GrowRandomUniform.
// Defaults to 0.01. Ignored by GrowZeros.
func (c *RiGLConfig) GrowInitScale(scale float64) *RiGLConfig {
	c.growInitScale = scale
	return c
}

// Momentum declares the host optimizer momentum-based: CreateSlots then also
// allocates a zero-initialized momentum buffer per variable, which the host
// optimizer reads and writes through GetSlot. Defaults to false.
func (c *RiGLConfig) Momentum(enabled bool) *RiGLConfig {
	c.momentum = enabled
	return c
}

// ResetMomentum sets whether the momentum buffer is zeroed at positions that
// flip from inactive to active on an update. Requires Momentum(true).
// Defaults to false: momentum is carried over.
func (c *RiGLConfig) ResetMomentum(reset bool) *RiGLConfig {
	c.resetMomentum = reset
	return c
}

// Done validates the configuration and returns the Pruner. It throws a
// *ConfigurationError on any invalid parameter -- eagerly, before any slot is
// created.
func (c *RiGLConfig) Done() *Pruner {
	if c.sched == nil {
		configErrorf("a Pruner requires an update schedule, got nil")
	}
	if c.sparsity < 0 || c.sparsity >= 1 {
		configErrorf("target sparsity must be in [0, 1), got %g", c.sparsity)
	}
	if c.blockRows < 1 || c.blockCols < 1 {
		configErrorf("block size must have positive dimensions, got (%d, %d)", c.blockRows, c.blockCols)
	}
	if c.pooling != PoolingAverage && c.pooling != PoolingMax {
		configErrorf("unsupported block pooling kind %d", c.pooling)
	}
	if _, found := knownGrowInits[c.growInit.String()]; !found {
		valid := maps.Keys(knownGrowInits)
		sort.Strings(valid)
		configErrorf("unsupported grow-init policy %d, valid values are %v", c.growInit, valid)
	}
	if c.noiseStddev < 0 {
		configErrorf("noise standard deviation must be >= 0, got %g", c.noiseStddev)
	}
	if c.growInitScale < 0 {
		configErrorf("grow-init scale must be >= 0, got %g", c.growInitScale)
	}
	if c.resetMomentum && !c.momentum {
		configErrorf("ResetMomentum(true) requires Momentum(true)")
	}
	cfg := *c
	return &Pruner{
		cfg:     cfg,
		pending: make(map[*context.Variable]*updatePlan),
	}
}

// Pruner is the mask-update engine: the per-variable state machine that owns
// a binary mask (and optionally a momentum buffer), decides on which steps to
// act, and performs the drop/grow selection.
//
// A variable goes Uninitialized -> Active once, via CreateSlots. After that,
// the host optimizer drives the per-step protocol: Preprocess before applying
// its own weight update, Postprocess after. The Pruner is the only writer of
// the mask, and only during Postprocess.
//
// Updates across different variables are independent and may be run
// concurrently by the caller on one shared Pruner; within a single variable
// the caller must order Preprocess before Postprocess for the same step.
type Pruner struct {
	cfg RiGLConfig

	// mu guards pending. No other Pruner state is mutated after Done.
	mu sync.Mutex

	// pending holds the plan computed by Preprocess on an update step, keyed
	// by variable, until Postprocess commits it.
	pending map[*context.Variable]*updatePlan
}

// stagePlan records the plan computed by Preprocess for the variable.
func (p *Pruner) stagePlan(w *context.Variable, plan *updatePlan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[w] = plan
}

// takePlan removes and returns the plan staged for the variable at the given
// step, or nil if there is none.
func (p *Pruner) takePlan(w *context.Variable, step int64) *updatePlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, found := p.pending[w]
	if !found || plan.step != step {
		return nil
	}
	delete(p.pending, w)
	return plan
}

// updatePlan is the staged result of the drop/grow selection for one variable
// at one step.
type updatePlan struct {
	step    int64
	newMask *tensors.Tensor

	// grown are the flat indices that flip inactive -> active relative to the
	// pre-update mask. Growth only selects from pre-update inactive
	// positions, so this is exactly the grow selection.
	grown []int
}

// TargetSparsity this pruner holds its variables at.
func (p *Pruner) TargetSparsity() float64 { return p.cfg.sparsity }

// Schedule in use by this pruner.
func (p *Pruner) Schedule() Schedule { return p.cfg.sched }

// CreateSlots transitions the variable from Uninitialized to Active:
// it allocates the mask slot -- laid out by PermuteOnes at the configured
// target sparsity -- and, for momentum-based configurations, a
// zero-initialized momentum buffer. It is an idempotent no-op if the slots
// already exist.
func (p *Pruner) CreateSlots(ctx *context.Context, w *context.Variable) {
	maskVar := ctx.InspectSlot(w, MaskSlotName)
	if maskVar == nil {
		maskVar = ctx.SlotVariableWithValue(w, MaskSlotName, p.initialMask(w))
		klog.V(1).Infof("sparsity: created mask slot for %s: %d/%d active", w,
			maskVar.Value().CountNonZero(), maskVar.Value().Size())
	} else if maskVar.Trainable {
		klog.Warningf("sparsity: mask slot of %s was trainable, marking it as non-trainable", w)
		maskVar.SetTrainable(false)
	}
	if p.cfg.momentum {
		ctx.SlotVariable(w, MomentumSlotName, initializers.Zero)
	}
}

// initialMask builds the initial mask for w. With blocks, the layout is drawn
// at block granularity and broadcast, so whole blocks are active or inactive.
func (p *Pruner) initialMask(w *context.Variable) *tensors.Tensor {
	seed := p.cfg.seed + p.cfg.seedOffset
	if p.cfg.blockRows == 1 && p.cfg.blockCols == 1 {
		return PermuteOnes(w.Shape(), p.cfg.sparsity, seed)
	}
	gridShape := pooledShape(w.Shape(), p.cfg.blockRows, p.cfg.blockCols)
	blockMask := PermuteOnes(gridShape, p.cfg.sparsity, seed)
	return BroadcastBlocks(blockMask, p.cfg.blockRows, p.cfg.blockCols, w.Shape())
}

// GetSlot returns the slot tensor of the given name ("mask" or "momentum")
// for the variable. It throws a *UnconfiguredStateError if the slot was never
// allocated.
func (p *Pruner) GetSlot(ctx *context.Context, w *context.Variable, slotName string) *tensors.Tensor {
	return p.mustSlot(ctx, w, slotName).Value()
}

func (p *Pruner) mustSlot(ctx *context.Context, w *context.Variable, slotName string) *context.Variable {
	slot := ctx.InspectSlot(w, slotName)
	if slot == nil {
		unconfiguredErrorf("variable %s has no %q slot -- was CreateSlots called?", w, slotName)
	}
	return slot
}

// Preprocess is called once per training step, before the host optimizer
// applies its own weight update, with the gradient of that step.
//
// On non-update steps it returns the gradient unchanged with no side effects.
// On update steps it computes the drop/grow plan from the pre-step mask and
// the incoming gradient, stages it, and returns the gradient unchanged; the
// mask mutation itself is deferred to Postprocess.
func (p *Pruner) Preprocess(ctx *context.Context, w *context.Variable, grad *tensors.Tensor, step int64) *tensors.Tensor {
	maskVar := p.mustSlot(ctx, w, MaskSlotName)
	if !p.cfg.sched.ShouldUpdate(step) {
		return grad
	}
	if plan := p.planUpdate(maskVar.Value(), w.Value(), grad, step); plan != nil {
		p.stagePlan(w, plan)
	}
	return grad
}

// Postprocess commits the plan staged by Preprocess for the same step:
// it writes the new mask, reinitializes newly-grown weight values per the
// grow-init policy, and -- if configured -- zeroes the momentum buffer at
// those same positions. On steps with nothing staged it is a no-op.
func (p *Pruner) Postprocess(ctx *context.Context, w *context.Variable, _ *tensors.Tensor, step int64) {
	maskVar := p.mustSlot(ctx, w, MaskSlotName)
	plan := p.takePlan(w, step)
	if plan == nil {
		return
	}

	maskVar.SetValue(plan.newMask)
	if len(plan.grown) > 0 {
		p.reinitGrown(w, plan)
		if p.cfg.resetMomentum {
			momentumVar := p.mustSlot(ctx, w, MomentumSlotName)
			momentum := momentumVar.Value()
			for _, idx := range plan.grown {
				momentum.Set(idx, 0)
			}
		}
	}
	klog.V(1).Infof("sparsity: step %d updated mask of %s: %d connections regrown, %d/%d active",
		step, w, len(plan.grown), plan.newMask.CountNonZero(), plan.newMask.Size())
}

// UpdateMasks runs the full update protocol (Preprocess then Postprocess) for
// a set of variables and their gradients at the given step. It returns
// whether momentum was reset and whether any new connections were grown --
// mostly a convenience for tests and callers that don't interleave a weight
// update between the two phases.
func (p *Pruner) UpdateMasks(ctx *context.Context, ws []*context.Variable, grads []*tensors.Tensor, step int64) (momentumReset, newConnections bool) {
	for ii, w := range ws {
		p.Preprocess(ctx, w, grads[ii], step)
		p.mu.Lock()
		plan := p.pending[w]
		p.mu.Unlock()
		if plan != nil && len(plan.grown) > 0 {
			newConnections = true
			momentumReset = momentumReset || p.cfg.resetMomentum
		}
		p.Postprocess(ctx, w, grads[ii], step)
	}
	return
}

// planUpdate computes the drop/grow selection for one variable. It returns
// nil when the step's drop count is zero: the mask is then left untouched,
// bit-exactly.
func (p *Pruner) planUpdate(mask, weight, grad *tensors.Tensor, step int64) *updatePlan {
	blocked := p.cfg.blockRows != 1 || p.cfg.blockCols != 1

	// Scores at selection granularity: |w| to rank active connections,
	// |grad| to rank grow candidates.
	maskS, weightS, gradS := mask, weight.Abs(), grad.Abs()
	if blocked {
		maskS = Pool(mask, p.cfg.blockRows, p.cfg.blockCols, PoolingMax)
		weightS = Pool(weightS, p.cfg.blockRows, p.cfg.blockCols, p.cfg.pooling)
		gradS = Pool(gradS, p.cfg.blockRows, p.cfg.blockCols, p.cfg.pooling)
	}

	total := maskS.Size()
	active := maskS.CountNonZero()
	dropCount := roundHalfToEven(p.cfg.sched.DropFraction(step) * float64(active))
	if inactive := total - active; dropCount > inactive {
		// Growth only draws from inactive positions; more drops than that
		// could not be replaced and would lower the active count.
		dropCount = inactive
	}
	if dropCount == 0 {
		return nil
	}

	// Drop pass: keep the highest-|w| active positions. Inactive positions
	// score below any |w| >= 0, so the kept set is a strict subset of the
	// active set.
	dropScores := make([]float64, total)
	for ii := 0; ii < total; ii++ {
		if maskS.At(ii) != 0 {
			dropScores[ii] = weightS.At(ii)
		} else {
			dropScores[ii] = -1
		}
	}
	kept := TopKMask(dropScores, active-dropCount)

	// Grow pass: rank the inactive positions by |grad|, optionally perturbed
	// by seeded noise. Every pre-update active position -- kept or dropped --
	// is lifted below the global minimum, so a connection dropped this step
	// can never be regrown in the same step and the dropped and grown sets
	// are disjoint by construction.
	growScores := gradS.CloneFlat()
	if p.cfg.noiseStddev > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: p.cfg.noiseStddev, Src: p.stepSource(step, noiseStreamSalt)}
		for ii := range growScores {
			growScores[ii] += noise.Rand()
		}
	}
	sentinel := minOf(growScores) - 1
	for ii := 0; ii < total; ii++ {
		if maskS.At(ii) != 0 {
			growScores[ii] = sentinel
		}
	}
	grow := TopKMask(growScores, dropCount)

	// Merge: exactly `active` ones, sparsity preserved.
	newMaskS := tensors.FromFlat(maskS.Shape(), kept)
	for ii, g := range grow {
		if g != 0 {
			newMaskS.Set(ii, 1)
		}
	}

	newMask := newMaskS
	if blocked {
		newMask = BroadcastBlocks(newMaskS, p.cfg.blockRows, p.cfg.blockCols, mask.Shape())
	}

	// Newly-active positions, at element resolution, against the pre-update mask.
	var grown []int
	for ii := 0; ii < mask.Size(); ii++ {
		if newMask.At(ii) != 0 && mask.At(ii) == 0 {
			grown = append(grown, ii)
		}
	}
	return &updatePlan{step: step, newMask: newMask, grown: grown}
}

// reinitGrown assigns weight values at newly-grown positions per the
// grow-init policy. Draws come from a stream seeded purely by
// (seed, seedOffset, step), in ascending index order, so they are
// reproducible.
func (p *Pruner) reinitGrown(w *context.Variable, plan *updatePlan) {
	weight := w.Value()
	switch p.cfg.growInit {
	case GrowZeros:
		for _, idx := range plan.grown {
			weight.Set(idx, 0)
		}
	case GrowRandomNormal:
		dist := distuv.Normal{Mu: 0, Sigma: 1, Src: p.stepSource(plan.step, reinitStreamSalt)}
		for _, idx := range plan.grown {
			weight.Set(idx, dist.Rand()*p.cfg.growInitScale)
		}
	case GrowRandomUniform:
		rng := rand.New(p.stepSource(plan.step, reinitStreamSalt))
		for _, idx := range plan.grown {
			weight.Set(idx, (2*rng.Float64()-1)*p.cfg.growInitScale)
		}
	}
}

// stepSource returns a random source that depends only on the configured
// seeds, the step and the salt -- never on how many draws happened before.
func (p *Pruner) stepSource(step int64, salt uint64) rand.Source {
	return rand.NewSource(uint64(p.cfg.seed+p.cfg.seedOffset) ^ (uint64(step)+1)*salt)
}

// roundHalfToEven rounds with ties going to the even integer, so e.g. drop
// fractions 0.4 and 0.5 of 5 active connections both round to 2 dropped.
func roundHalfToEven(x float64) int {
	return int(math.RoundToEven(x))
}

func minOf(values []float64) float64 {
	min := math.Inf(1)
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
