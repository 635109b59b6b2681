// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/codegraph/pkg/model"
)

func TestComputeDiff(t *testing.T) {
	idA := model.NewNodeID("proj", "A", "f.go", 0)
	idB := model.NewNodeID("proj", "B", "f.go", 10)
	idC := model.NewNodeID("proj", "C", "f.go", 20)

	previous := []model.Node{
		{ID: idA, ContentHash: model.ContentHash("a-v1")},
		{ID: idB, ContentHash: model.ContentHash("b-v1")},
	}
	current := []model.Node{
		{ID: idA, ContentHash: model.ContentHash("a-v1")},   // unchanged
		{ID: idB, ContentHash: model.ContentHash("b-v2")},   // updated
		{ID: idC, ContentHash: model.ContentHash("c-v1")},   // added
	}

	diff := ComputeDiff(previous, current)
	assert.ElementsMatch(t, []model.ID{idC}, diff.Added)
	assert.ElementsMatch(t, []model.ID{idB}, diff.Updated)
	assert.Empty(t, diff.Removed)
}

func TestComputeDiff_Removed(t *testing.T) {
	idA := model.NewNodeID("proj", "A", "f.go", 0)
	previous := []model.Node{{ID: idA}}
	current := []model.Node{}

	diff := ComputeDiff(previous, current)
	assert.Equal(t, []model.ID{idA}, diff.Removed)
}

func TestIsLightReparse(t *testing.T) {
	diff := Diff{Updated: []model.ID{{1}, {2}}}
	assert.True(t, IsLightReparse(diff, 10))
	assert.False(t, IsLightReparse(diff, 4))
}
