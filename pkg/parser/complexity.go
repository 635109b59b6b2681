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

import sitter "github.com/smacker/go-tree-sitter"

// branchNodeTypes is, per language, the set of tree-sitter node types that
// introduce a new branch for cyclomatic complexity purposes. The set is
// language-defined but deterministic for a given extractor (spec §4.1).
var branchNodeTypes = map[string]map[string]bool{
	"go": {
		"if_statement": true, "for_statement": true, "expression_case": true,
		"default_case": true, "communication_case": true, "type_case": true,
		"binary_expression": false, // only && / || count; handled specially below
	},
	"typescript": {
		"if_statement": true, "for_statement": true, "for_in_statement": true,
		"while_statement": true, "do_statement": true, "switch_case": true,
		"catch_clause": true, "ternary_expression": true,
	},
	"javascript": {
		"if_statement": true, "for_statement": true, "for_in_statement": true,
		"while_statement": true, "do_statement": true, "switch_case": true,
		"catch_clause": true, "ternary_expression": true,
	},
}

// cyclomaticComplexity counts branch-introducing constructs in a function's
// subtree, starting from a base complexity of 1.
func cyclomaticComplexity(node *sitter.Node, lang string, content []byte) float64 {
	if node == nil {
		return 1
	}
	branches, ok := branchNodeTypes[lang]
	if !ok {
		return 1
	}
	complexity := 1.0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		t := n.Type()
		if branches[t] {
			complexity++
		}
		if lang == "go" && t == "binary_expression" {
			op := n.ChildByFieldName("operator")
			if op != nil {
				opText := string(content[op.StartByte():op.EndByte()])
				if opText == "&&" || opText == "||" {
					complexity++
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return complexity
}

// cyclomaticComplexityText is a simplified text-based approximation used by
// the Python and Rust extractors, which parse with tree-sitter but count
// complexity on the source text: counts branch keywords within a function
// body.
func cyclomaticComplexityText(body string, keywords []string) float64 {
	complexity := 1.0
	for _, kw := range keywords {
		complexity += float64(countOccurrences(body, kw))
	}
	return complexity
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			// require a word boundary-ish check to reduce false positives
			before := byte(' ')
			if i > 0 {
				before = s[i-1]
			}
			after := byte(' ')
			if i+len(substr) < len(s) {
				after = s[i+len(substr)]
			}
			if !isIdentChar(before) && !isIdentChar(after) {
				count++
			}
		}
	}
	return count
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
