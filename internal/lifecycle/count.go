package lifecycle

import (
	"context"
	"fmt"

	"podkeeper/internal/metrics"
)

// PodCounts holds the number of pods matching the configured name.
type PodCounts struct {
	Total   int
	Running int
}

// Counts reports how many pods match the configured name and how many of
// them are running. No match is {0, 0}, not an error.
func (m *Manager) Counts(ctx context.Context) (PodCounts, error) {
	matching, err := m.findAllPods(ctx)
	if err != nil {
		return PodCounts{}, fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	counts := PodCounts{Total: len(matching)}
	for _, pod := range matching {
		if pod.Running() {
			counts.Running++
		}
	}
	metrics.SetPodCounts(counts.Total, counts.Running)
	m.log.Debugf("Pod counts: total=%d running=%d", counts.Total, counts.Running)

	return counts, nil
}
