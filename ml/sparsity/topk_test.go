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
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKMask(t *testing.T) {
	scores := []float64{0.5, 2.0, -1.0, 3.0, 0.0}
	assert.Equal(t, []float64{0, 1, 0, 1, 0}, TopKMask(scores, 2))
	assert.Equal(t, []float64{1, 1, 0, 1, 1}, TopKMask(scores, 4))
}

func TestTopKMaskBoundaries(t *testing.T) {
	scores := []float64{1, 2, 3}
	assert.Equal(t, []float64{0, 0, 0}, TopKMask(scores, 0))
	assert.Equal(t, []float64{0, 0, 0}, TopKMask(scores, -1))
	assert.Equal(t, []float64{1, 1, 1}, TopKMask(scores, 3))
	assert.Equal(t, []float64{1, 1, 1}, TopKMask(scores, 10))
	assert.Equal(t, []float64{}, TopKMask(nil, 0))
}

func TestTopKMaskTieBreak(t *testing.T) {
	// All candidates tied: the lowest indices win, deterministically.
	scores := []float64{7, 7, 7, 7, 7}
	assert.Equal(t, []float64{1, 1, 1, 0, 0}, TopKMask(scores, 3))

	// Tie at the selection boundary only.
	scores = []float64{5, 2, 9, 2, 2}
	assert.Equal(t, []float64{1, 1, 1, 0, 0}, TopKMask(scores, 3))
}

func TestTopKMaskDoesNotMutate(t *testing.T) {
	scores := []float64{3, 1, 4, 1, 5}
	original := slices.Clone(scores)
	TopKMask(scores, 2)
	assert.Equal(t, original, scores)
}
