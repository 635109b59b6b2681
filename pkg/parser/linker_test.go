// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

const pkgAFile = `package a

func Helper() int {
	return 1
}
`

const pkgBFile = `package b

import "proj/a"

func UseHelper() int {
	return a.Helper()
}
`

func TestLinker_ResolvesCrossPackageCall(t *testing.T) {
	goExt := NewGoExtractor()

	ra, err := goExt.Extract("proj", "a/a.go", []byte(pkgAFile))
	require.NoError(t, err)
	rb, err := goExt.Extract("proj", "b/b.go", []byte(pkgBFile))
	require.NoError(t, err)

	files := []fileResult{
		{ProjectID: "proj", FilePath: "a/a.go", Language: model.LangGo, Result: ra},
		{ProjectID: "proj", FilePath: "b/b.go", Language: model.LangGo, Result: rb},
	}

	linker := NewLinker()
	linker.BuildIndex(files)
	linker.Link(files)

	var sawResolvedCall bool
	for _, e := range files[1].Result.Edges {
		if e.Type == model.EdgeCalls && e.Resolved() {
			sawResolvedCall = true
		}
	}
	assert.True(t, sawResolvedCall, "cross-package call a.Helper() should resolve via the package alias")
}

func TestLinker_SynthesizesContainsEdges(t *testing.T) {
	goExt := NewGoExtractor()
	r, err := goExt.Extract("proj", "a/a.go", []byte(pkgAFile))
	require.NoError(t, err)

	files := []fileResult{{ProjectID: "proj", FilePath: "a/a.go", Language: model.LangGo, Result: r}}
	linker := NewLinker()
	linker.BuildIndex(files)
	linker.Link(files)

	var containsCount int
	for _, e := range files[0].Result.Edges {
		if e.Type == model.EdgeContains {
			containsCount++
		}
	}
	assert.Positive(t, containsCount)
}
