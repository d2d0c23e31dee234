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

import "sort"

// TopKMask returns a 0/1 mask over scores with exactly keep ones, placed at
// the positions of the keep largest values.
//
// Ties at the selection boundary are broken by original index order (lower
// index wins), never by incidental iteration order, so repeated runs with the
// same inputs produce bit-identical masks. The scores slice is not mutated.
//
// keep <= 0 returns an all-zero mask and keep >= len(scores) an all-one mask;
// both are valid boundary cases.
func TopKMask(scores []float64, keep int) []float64 {
	n := len(scores)
	mask := make([]float64, n)
	if keep <= 0 {
		return mask
	}
	if keep >= n {
		for ii := range mask {
			mask[ii] = 1
		}
		return mask
	}

	order := make([]int, n)
	for ii := range order {
		order[ii] = ii
	}
	// The comparator is a total order (score desc, then index asc), so the
	// result is deterministic even under an unstable sort.
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return ia < ib
	})
	for _, idx := range order[:keep] {
		mask[idx] = 1
	}
	return mask
}
