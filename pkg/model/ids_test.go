// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeID_Deterministic(t *testing.T) {
	id1 := NewNodeID("proj", "pkg.Foo", "src/pkg/foo.go", 42)
	id2 := NewNodeID("proj", "pkg.Foo", "src/pkg/foo.go", 42)
	assert.Equal(t, id1, id2, "identical inputs must produce identical ids (P1)")
	require.False(t, id1.IsZero())
}

func TestNewNodeID_PathNormalization(t *testing.T) {
	id1 := NewNodeID("proj", "pkg.Foo", "./src/pkg/foo.go", 42)
	id2 := NewNodeID("proj", "pkg.Foo", "src/pkg/foo.go", 42)
	assert.Equal(t, id1, id2, "leading ./ must not affect id derivation")
}

func TestNewNodeID_DiffersOnInputChange(t *testing.T) {
	base := NewNodeID("proj", "pkg.Foo", "src/pkg/foo.go", 42)
	cases := []ID{
		NewNodeID("other", "pkg.Foo", "src/pkg/foo.go", 42),
		NewNodeID("proj", "pkg.Bar", "src/pkg/foo.go", 42),
		NewNodeID("proj", "pkg.Foo", "src/pkg/bar.go", 42),
		NewNodeID("proj", "pkg.Foo", "src/pkg/foo.go", 7),
	}
	for _, c := range cases {
		assert.NotEqual(t, base, c)
	}
}

func TestExternalImportTarget(t *testing.T) {
	assert.Equal(t, "external::rust::crate::foo", ExternalImportTarget(LangRust, "crate::foo"))
}

func TestModuleKey(t *testing.T) {
	assert.Equal(t, "module::rust::foo", ModuleKey(LangRust, "foo"))
	assert.Equal(t, "module::rust", ModuleKey(LangRust, ""))
}
