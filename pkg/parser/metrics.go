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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the parser package's Prometheus instrumentation.
type metrics struct {
	once sync.Once

	filesParsed  prometheus.Counter
	filesFailed  prometheus.Counter
	nodesEmitted prometheus.Counter
	edgesEmitted prometheus.Counter
	linkResolved prometheus.Counter
	linkExternal prometheus.Counter

	parseDuration prometheus.Histogram
	linkDuration  prometheus.Histogram
}

var parserMetrics metrics

func (m *metrics) init() {
	m.once.Do(func() {
		m.filesParsed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_files_parsed_total", Help: "Source files successfully extracted.",
		})
		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_files_failed_total", Help: "Source files that failed extraction.",
		})
		m.nodesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_nodes_emitted_total", Help: "Nodes emitted across all extractors.",
		})
		m.edgesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_edges_emitted_total", Help: "Edges emitted across all extractors.",
		})
		m.linkResolved = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_links_resolved_total", Help: "Unresolved edges settled by the module linker.",
		})
		m.linkExternal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codegraph_parser_links_external_total", Help: "Edges left pointing at an external/unresolved symbol.",
		})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "codegraph_parser_extract_seconds", Help: "Per-file extraction duration.", Buckets: buckets,
		})
		m.linkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "codegraph_parser_link_seconds", Help: "Directory-level module-linker duration.", Buckets: buckets,
		})

		prometheus.MustRegister(
			m.filesParsed, m.filesFailed, m.nodesEmitted, m.edgesEmitted,
			m.linkResolved, m.linkExternal, m.parseDuration, m.linkDuration,
		)
	})
}

func recordExtraction(stats *Stats) {
	parserMetrics.init()
	parserMetrics.filesParsed.Add(float64(stats.FilesParsed))
	parserMetrics.filesFailed.Add(float64(stats.FilesFailed))
	parserMetrics.nodesEmitted.Add(float64(stats.NodesEmitted))
	parserMetrics.edgesEmitted.Add(float64(stats.EdgesEmitted))
}
