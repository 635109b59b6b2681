// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package propagator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeAndSchedule_StrongExportsAmplifiesToCriticalForUserVisible(t *testing.T) {
	g := NewGraph()
	g.AddEdge("app.go", "lib.go", Exports, StrengthStrong)
	p := New(g, 10)

	n := p.AnalyzeAndSchedule([]FileChange{{FilePath: "lib.go", Impact: Medium, UserVisible: true}})

	require.Contains(t, n.ImpactedFiles, "app.go")
	found := false
	for _, b := range n.Batches {
		for _, f := range b.Files {
			if f == "app.go" {
				assert.Equal(t, Critical, b.Priority, "strong Exports from a user_visible change should land app.go in the Critical batch")
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestAnalyzeAndSchedule_CyclesTerminateAndVisitOnce(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.go", "b.go", Uses, StrengthWeak)
	g.AddEdge("b.go", "a.go", Uses, StrengthWeak)
	p := New(g, 10)

	done := make(chan Notification, 1)
	go func() {
		done <- p.AnalyzeAndSchedule([]FileChange{{FilePath: "a.go", Impact: Low}})
	}()

	select {
	case n := <-done:
		assert.ElementsMatch(t, []string{"a.go", "b.go"}, n.ImpactedFiles)
	case <-timeoutCh():
		t.Fatal("AnalyzeAndSchedule did not terminate on a cyclic graph")
	}
}

func TestAnalyzeAndSchedule_BatchesRespectBatchMax(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 30; i++ {
		g.AddEdge(fmt.Sprintf("leaf%d.go", i), "root.go", Uses, StrengthWeak)
	}
	p := New(g, 5)

	n := p.AnalyzeAndSchedule([]FileChange{{FilePath: "root.go", Impact: Medium}})

	require.Len(t, n.ImpactedFiles, 31) // root + 30 leaves
	assert.LessOrEqual(t, len(n.Batches), 7)
	for _, b := range n.Batches {
		assert.LessOrEqual(t, len(b.Files), 5)
	}
}

func TestPropagator_SubscribersReceiveBroadcast(t *testing.T) {
	g := NewGraph()
	p := New(g, 10)
	ch := make(chan Notification, 1)
	p.Subscribe(ch)

	p.AnalyzeAndSchedule([]FileChange{{FilePath: "solo.go", Impact: Low}})

	select {
	case n := <-ch:
		assert.Equal(t, []string{"solo.go"}, n.ChangedFiles)
	default:
		t.Fatal("expected a broadcast notification on the subscribed channel")
	}
}

func timeoutCh() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-time.After(2 * time.Second)
		close(ch)
	}()
	return ch
}
