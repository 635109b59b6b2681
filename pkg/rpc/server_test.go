// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/embedding"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/retrieval"
	"github.com/kraklabs/codegraph/pkg/vector"
)

func setupDispatcher(t *testing.T) (*Dispatcher, *Server) {
	t.Helper()
	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a", "parse.go"), []byte("line1\nline2\nline3\n"), 0o644))

	g, err := graph.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	n := model.Node{
		ID:       model.NewNodeID("proj", "ParseManifest", "a/parse.go", 0),
		Name:     "ParseManifest",
		Kind:     model.KindFunction,
		Language: model.LangGo,
		Location: model.Location{FilePath: "a/parse.go", StartLine: 1, EndLine: 3},
		Content:  "func ParseManifest() error { return nil }",
	}
	require.NoError(t, g.PutNode(context.Background(), n))

	vcfg := vector.DefaultStoreConfig(t.TempDir())
	vcfg.IndexKind = vector.IndexExact
	v, err := vector.NewStore(vcfg)
	require.NoError(t, err)

	provider := embedding.NewDeterministicProvider(16)
	pipeline := embedding.NewPipeline([]embedding.Provider{provider}, embedding.DefaultRetryConfig())
	ev, err := pipeline.Embed(context.Background(), n.Content)
	require.NoError(t, err)
	require.NoError(t, v.AddVectors([]model.Node{n}, []vector.Vector{ev}))

	retriever := retrieval.New(g, v, pipeline, retrieval.DefaultRetrievalConfig())
	d := NewDispatcher(g, retriever, repoRoot)
	return d, NewServer(d.Methods())
}

func doRPC(t *testing.T, s *Server, method string, params interface{}) Response {
	t.Helper()
	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)
	reqBody, err := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: paramsJSON})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(reqBody))
	s.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_VectorSearchReturnsMatch(t *testing.T) {
	_, s := setupDispatcher(t)
	resp := doRPC(t, s, "vector.search", map[string]interface{}{"query": "ParseManifest", "limit": 5})
	require.Nil(t, resp.Error)
	raw, _ := json.Marshal(resp.Result)
	var out struct {
		Results []searchResultItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "ParseManifest", out.Results[0].Name)
}

func TestServer_CodeReadReturnsLineRange(t *testing.T) {
	_, s := setupDispatcher(t)
	resp := doRPC(t, s, "code.read", map[string]interface{}{"path": "a/parse.go", "start": 2, "end": 3})
	require.Nil(t, resp.Error)
	raw, _ := json.Marshal(resp.Result)
	var out struct {
		Lines []codeLine `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Lines, 2)
	assert.Equal(t, "line2", out.Lines[0].Text)
}

func TestServer_CodePatchDryRunLeavesFileUntouched(t *testing.T) {
	d, s := setupDispatcher(t)
	resp := doRPC(t, s, "code.patch", map[string]interface{}{
		"path": "a/parse.go", "find": "line2", "replace": "LINE2", "dry_run": true,
	})
	require.Nil(t, resp.Error)
	raw, _ := json.Marshal(resp.Result)
	var out struct {
		Replacements int `json:"replacements"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out.Replacements)

	content, err := os.ReadFile(filepath.Join(d.RepoRoot, "a", "parse.go"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "line2")
	assert.NotContains(t, string(content), "LINE2")
}

func TestServer_CodeReadRejectsPathEscape(t *testing.T) {
	_, s := setupDispatcher(t)
	resp := doRPC(t, s, "code.read", map[string]interface{}{"path": "../../etc/passwd"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestServer_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	_, s := setupDispatcher(t)
	resp := doRPC(t, s, "does.not.exist", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}
