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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kraklabs/codegraph/pkg/model"
)

// skippedDirs are never descended into: VCS, vendored, build-output and
// cache directories that would only add noise to the graph.
var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".venv": true, "__pycache__": true, "target": true,
}

var extByLanguage = map[string]model.Language{
	".go":    model.LangGo,
	".ts":    model.LangTypeScript,
	".tsx":   model.LangTypeScript,
	".js":    model.LangJavaScript,
	".jsx":   model.LangJavaScript,
	".py":    model.LangPython,
	".rs":    model.LangRust,
	".proto": model.LangProtobuf,
}

// Extractor walks a project directory, dispatching each file to the
// extractor registered for its language, then runs the module-linker
// post-pass over the whole batch (spec §4.1).
type Extractor struct {
	logger   *slog.Logger
	numWorkers int
	registry map[model.Language]func() LanguageExtractor
}

// NewExtractor builds an Extractor with one extractor factory per supported
// language. Factories (not shared instances) are used because tree-sitter
// parsers are not safe for concurrent use across worker goroutines.
func NewExtractor(logger *slog.Logger, numWorkers int) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Extractor{
		logger:     logger,
		numWorkers: numWorkers,
		registry: map[model.Language]func() LanguageExtractor{
			model.LangGo:         func() LanguageExtractor { return NewGoExtractor() },
			model.LangTypeScript: func() LanguageExtractor { return NewTypeScriptExtractor() },
			model.LangJavaScript: func() LanguageExtractor { return NewTypeScriptExtractor() },
			model.LangPython:     func() LanguageExtractor { return NewPythonExtractor() },
			model.LangRust:       func() LanguageExtractor { return NewRustExtractor() },
			model.LangProtobuf:   func() LanguageExtractor { return NewProtobufExtractor() },
		},
	}
}

// fileJob is one file queued for extraction.
type fileJob struct {
	path string
	lang model.Language
}

// ExtractDir walks root, extracts every recognized source file, links the
// results, and returns the merged node/edge stream plus run statistics. It
// never aborts on a single file's failure (spec: "malformed input degrades
// to a partial result", edge case E1).
func (e *Extractor) ExtractDir(ctx context.Context, projectID, root string) (*ExtractionResult, *Stats, error) {
	jobs, err := e.discover(root)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: discover: %w", err)
	}

	stats := &Stats{}
	results := make([]fileResult, len(jobs))
	var filled int32

	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	workers := e.numWorkers
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extractors := make(map[model.Language]LanguageExtractor)
			for idx := range jobCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				job := jobs[idx]
				res, err := e.extractOneSafely(extractors, projectID, job)
				mu.Lock()
				if err != nil {
					stats.FilesFailed++
					stats.Errors = append(stats.Errors, FileError{FilePath: job.path, Err: err})
				} else {
					stats.FilesParsed++
					stats.NodesEmitted += len(res.Nodes)
					stats.EdgesEmitted += len(res.Edges)
					results[idx] = fileResult{ProjectID: projectID, FilePath: job.path, Language: job.lang, Result: res}
					atomic.AddInt32(&filled, 1)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	compact := make([]fileResult, 0, filled)
	for _, r := range results {
		if r.Result != nil {
			compact = append(compact, r)
		}
	}

	linker := NewLinker()
	linker.BuildIndex(compact)
	linker.Link(compact)

	merged := &ExtractionResult{}
	for _, r := range compact {
		merged.Nodes = append(merged.Nodes, r.Result.Nodes...)
		merged.Edges = append(merged.Edges, r.Result.Edges...)
	}

	recordExtraction(stats)
	return merged, stats, nil
}

// extractOneSafely recovers from a panic in a single-file extraction so one
// malformed file can never take down a whole directory walk.
func (e *Extractor) extractOneSafely(cache map[model.Language]LanguageExtractor, projectID string, job fileJob) (result *ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic extracting %s: %v", job.path, r)
			e.logger.Error("parser.extract.panic", "path", job.path, "recovered", r)
		}
	}()

	content, readErr := os.ReadFile(job.path)
	if readErr != nil {
		return nil, fmt.Errorf("read %s: %w", job.path, readErr)
	}

	ext, ok := cache[job.lang]
	if !ok {
		factory, ok := e.registry[job.lang]
		if !ok {
			return nil, fmt.Errorf("no extractor registered for %s", job.lang)
		}
		ext = factory()
		cache[job.lang] = ext
	}

	return ext.Extract(projectID, job.path, content)
}

func (e *Extractor) discover(root string) ([]fileJob, error) {
	var jobs []fileJob
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skippedDirs[info.Name()] && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		lang, ok := extByLanguage[ext]
		if !ok {
			return nil
		}
		jobs = append(jobs, fileJob{path: path, lang: lang})
		return nil
	})
	return jobs, err
}
