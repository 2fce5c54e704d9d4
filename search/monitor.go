package search

import "github.com/poiesic/affinity/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query *Query)
	AfterCandidateFetch(candidateCount int)
	AfterScoring(scored map[core.ID]float32)
	AfterFiltering(surviving []core.ID)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *Query)                    {}
func (n *noopMonitor) AfterCandidateFetch(_ int)         {}
func (n *noopMonitor) AfterScoring(_ map[core.ID]float32) {}
func (n *noopMonitor) AfterFiltering(_ []core.ID)        {}
func (n *noopMonitor) Finish(_ *Result)                  {}
