// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package parser

import "github.com/kraklabs/codegraph/pkg/model"

// ComputeDiff compares a file's previously-stored nodes against a fresh
// extraction and classifies each node as added, removed, or updated. Node
// identity is stable across re-parses (P1), so comparison keys purely on
// ID plus ContentHash rather than any positional heuristic.
func ComputeDiff(previous, current []model.Node) Diff {
	prevByID := make(map[model.ID]model.Node, len(previous))
	for _, n := range previous {
		prevByID[n.ID] = n
	}
	currByID := make(map[model.ID]model.Node, len(current))
	for _, n := range current {
		currByID[n.ID] = n
	}

	var diff Diff
	for id, curr := range currByID {
		prev, existed := prevByID[id]
		if !existed {
			diff.Added = append(diff.Added, id)
			continue
		}
		if prev.ContentHash != curr.ContentHash {
			diff.Updated = append(diff.Updated, id)
		}
	}
	for id := range prevByID {
		if _, stillExists := currByID[id]; !stillExists {
			diff.Removed = append(diff.Removed, id)
		}
	}
	return diff
}

// IsLightReparse reports whether a diff is small enough, relative to the
// previous node count, to apply as an incremental patch rather than
// replacing the file's subgraph wholesale (spec §4.1, LightReparseThreshold).
func IsLightReparse(diff Diff, previousNodeCount int) bool {
	if previousNodeCount == 0 {
		return len(diff.Added) == 0
	}
	changed := len(diff.Added) + len(diff.Removed) + len(diff.Updated)
	return float64(changed)/float64(previousNodeCount) <= LightReparseThreshold
}
