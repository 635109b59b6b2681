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

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/codegraph/pkg/model"
)

// packageInfo tracks a Go-style directory package discovered during linking.
type packageInfo struct {
	path  string
	name  string
	files []string
}

// Linker is the module-linker post-pass: it wires Contains edges from a
// file's module node, where its language extractor emits one, to every
// other node of that file, and resolves cross-file/cross-package Calls and Imports edges whose
// ToSymbol could not be settled during single-file extraction (spec §4.1,
// "module synthesis + Contains-edge + Import-resolution algorithm").
//
// It generalizes the teacher's CallResolver (pkg/ingestion/resolver.go),
// which only resolved Go same-module function calls, to every language the
// extractor set supports.
type Linker struct {
	mu sync.Mutex

	packageIndex            map[string]*packageInfo  // Go dir path -> package info
	globalFuncs             map[string]map[string]model.ID // Go dir path -> simple func name -> id
	importPathToPackagePath map[string]string

	// qualifiedIndex is a flat, language-agnostic map from (language,
	// qualified_name) to node id, used as a fallback resolver for
	// TypeScript/Python/Rust/Protobuf cross-file references.
	qualifiedIndex map[string]model.ID
}

func NewLinker() *Linker {
	return &Linker{
		packageIndex:            make(map[string]*packageInfo),
		globalFuncs:             make(map[string]map[string]model.ID),
		importPathToPackagePath: make(map[string]string),
		qualifiedIndex:          make(map[string]model.ID),
	}
}

// fileResult pairs a parsed file's path and language with its extraction.
type fileResult struct {
	ProjectID string
	FilePath  string
	Language  model.Language
	Result    *ExtractionResult
}

// BuildIndex scans every file's extraction result and populates the
// package/function/qualified-name indices. Must be called once, after all
// files in a directory walk have been extracted, before Link.
func (l *Linker) BuildIndex(files []fileResult) {
	for _, f := range files {
		if f.Language == model.LangGo {
			dir := filepath.Dir(f.FilePath)
			if _, ok := l.packageIndex[dir]; !ok {
				l.packageIndex[dir] = &packageInfo{path: dir}
			}
			l.packageIndex[dir].files = append(l.packageIndex[dir].files, f.FilePath)
		}
		for _, n := range f.Result.Nodes {
			key := string(n.Language) + "|" + n.QualifiedName
			l.qualifiedIndex[key] = n.ID

			if f.Language == model.LangGo && (n.Kind == model.KindFunction || n.Kind == model.KindMethod) {
				dir := filepath.Dir(f.FilePath)
				if l.globalFuncs[dir] == nil {
					l.globalFuncs[dir] = make(map[string]model.ID)
				}
				simple := n.Name
				if idx := strings.LastIndex(n.Name, "."); idx >= 0 {
					simple = n.Name[idx+1:]
				}
				l.globalFuncs[dir][simple] = n.ID
			}
			if n.Kind == model.KindModule {
				dir := filepath.Dir(f.FilePath)
				if pkg, ok := l.packageIndex[dir]; ok && pkg.name == "" {
					pkg.name = n.Name
				}
			}
		}
	}
	l.buildImportPathMapping()
}

func (l *Linker) buildImportPathMapping() {
	for pkgPath, pkg := range l.packageIndex {
		l.importPathToPackagePath[pkgPath] = pkgPath
		if pkg.name != "" {
			l.importPathToPackagePath[pkg.name] = pkgPath
		}
	}
}

// Link resolves every file's unresolved Calls/Imports edges in place and
// adds synthetic Contains edges from each file's module node to its other
// nodes. It mutates the Result.Edges/Nodes slices of each fileResult.
func (l *Linker) Link(files []fileResult) {
	type job struct {
		idx int
		f   fileResult
	}
	jobs := make(chan job, len(files))
	results := make(chan struct {
		idx   int
		edges []model.Edge
	}, len(files))

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				edges := l.linkFile(j.f)
				results <- struct {
					idx   int
					edges []model.Edge
				}{j.idx, edges}
			}
		}()
	}

	for i, f := range files {
		jobs <- job{idx: i, f: f}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		files[r.idx].Result.Edges = r.edges
	}
}

func (l *Linker) linkFile(f fileResult) []model.Edge {
	var moduleID model.ID
	var moduleFound bool
	for _, n := range f.Result.Nodes {
		if n.Kind == model.KindModule {
			moduleID = n.ID
			moduleFound = true
			break
		}
	}

	edges := make([]model.Edge, 0, len(f.Result.Edges)+len(f.Result.Nodes))
	for _, e := range f.Result.Edges {
		if e.Resolved() {
			edges = append(edges, e)
			continue
		}
		if resolved, ok := l.resolve(e, f); ok {
			e.To = resolved
			e.ToSymbol = ""
		}
		edges = append(edges, e)
	}

	if moduleFound {
		for _, n := range f.Result.Nodes {
			if n.ID == moduleID {
				continue
			}
			edges = append(edges, model.Edge{
				ID:       model.NewEdgeID(moduleID, n.ID.String(), model.EdgeContains, f.FilePath, n.Span.Start),
				From:     moduleID,
				To:       n.ID,
				Type:     model.EdgeContains,
				Weight:   model.DefaultEdgeWeight,
				FilePath: f.FilePath,
			})
		}
	}

	return edges
}

// resolve attempts to settle one unresolved edge's symbolic target.
func (l *Linker) resolve(e model.Edge, f fileResult) (model.ID, bool) {
	sym := e.ToSymbol

	switch f.Language {
	case model.LangGo:
		return l.resolveGo(sym, f.FilePath)
	default:
		return l.resolveGeneric(sym, f.Language)
	}
}

// resolveGo mirrors the teacher's resolveCall: split "pkg.Foo" style
// external symbols, map the package alias to an import path, map that to a
// local package directory, then look up the exported function.
func (l *Linker) resolveGo(sym string, filePath string) (model.ID, bool) {
	spec := strings.TrimPrefix(sym, "external::go::")
	if spec == sym {
		return model.ID{}, false
	}
	if !strings.Contains(spec, ".") {
		return model.ID{}, false
	}
	parts := strings.SplitN(spec, ".", 2)
	pkgAlias, funcName := parts[0], parts[1]
	if idx := strings.LastIndex(funcName, "."); idx >= 0 {
		funcName = funcName[idx+1:]
	}
	if funcName == "" || funcName[0] < 'A' || funcName[0] > 'Z' {
		return model.ID{}, false
	}

	// Best-effort: match the alias against a package directory whose base
	// name or package name equals the alias (suffix matching, same
	// heuristic the teacher uses when an explicit import-path table isn't
	// available for a given file).
	pkgPath := l.findPackageByAlias(pkgAlias)
	if pkgPath == "" {
		return model.ID{}, false
	}
	if funcs, ok := l.globalFuncs[pkgPath]; ok {
		if id, ok := funcs[funcName]; ok {
			return id, true
		}
	}
	return model.ID{}, false
}

func (l *Linker) findPackageByAlias(alias string) string {
	if pkgPath, ok := l.importPathToPackagePath[alias]; ok {
		return pkgPath
	}
	for pkgPath, pkg := range l.packageIndex {
		if pkg.name == alias || filepath.Base(pkgPath) == alias {
			l.importPathToPackagePath[alias] = pkgPath
			return pkgPath
		}
	}
	return ""
}

// resolveGeneric handles TypeScript/Python/Rust/Protobuf: strip the
// external::<lang>:: prefix and try a direct qualified-name match, then a
// suffix match against any indexed symbol in the same language.
func (l *Linker) resolveGeneric(sym string, lang model.Language) (model.ID, bool) {
	prefix := "external::" + string(lang) + "::"
	spec := strings.TrimPrefix(sym, prefix)
	if spec == sym {
		return model.ID{}, false
	}
	spec = strings.TrimPrefix(spec, "./")
	spec = strings.TrimSuffix(spec, "/index")

	direct := string(lang) + "|" + spec
	if id, ok := l.qualifiedIndex[direct]; ok {
		return id, true
	}
	last := spec
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		last = spec[idx+1:]
	}
	if idx := strings.LastIndex(spec, "::"); idx >= 0 {
		last = spec[idx+2:]
	}
	for key, id := range l.qualifiedIndex {
		if !strings.HasPrefix(key, string(lang)+"|") {
			continue
		}
		name := strings.TrimPrefix(key, string(lang)+"|")
		if name == last || strings.HasSuffix(name, "."+last) || strings.HasSuffix(name, "::"+last) {
			return id, true
		}
	}
	return model.ID{}, false
}
