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

package model

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strconv"
)

// NewNodeID derives a stable node ID from (project_id, qualified_name,
// file_path, span_start). The derivation is deterministic so re-parsing
// unchanged source yields the same ID (P1: id stability).
func NewNodeID(projectID, qualifiedName, filePath string, spanStart int) ID {
	norm := NormalizePath(filePath)
	raw := projectID + "|" + qualifiedName + "|" + norm + "|" + strconv.Itoa(spanStart)
	return hashToID(raw)
}

// NewEdgeID derives a stable edge ID from its endpoints, type, and the span
// where it was observed.
func NewEdgeID(from ID, toKey string, edgeType EdgeType, filePath string, spanStart int) ID {
	norm := NormalizePath(filePath)
	raw := from.String() + "|" + toKey + "|" + edgeType.String() + "|" + norm + "|" + strconv.Itoa(spanStart)
	return hashToID(raw)
}

func hashToID(raw string) ID {
	sum := sha256.Sum256([]byte(raw))
	var id ID
	copy(id[:], sum[:16])
	return id
}

// ContentHash computes the content-addressed hash used to detect whether a
// node's text has changed between parses (drives in-place update vs. no-op).
func ContentHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}

// NormalizePath normalizes a file path for consistent, cross-platform ID
// derivation: strips a leading "./", cleans redundant separators, converts
// to forward slashes, and strips a leading "/".
func NormalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}

// ExternalImportTarget formats the symbolic target string used for an
// Import edge whose target cannot be resolved to a local module node.
func ExternalImportTarget(lang Language, spec string) string {
	return fmt.Sprintf("external::%s::%s", lang, spec)
}

// ModuleKey formats the canonical module key for a language-qualified
// package path, e.g. "module::rust::foo".
func ModuleKey(lang Language, path string) string {
	if path == "" {
		return fmt.Sprintf("module::%s", lang)
	}
	return fmt.Sprintf("module::%s::%s", lang, path)
}
