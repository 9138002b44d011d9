package router

import "sort"

const defaultHealthGap = 0.1

// Selector ranks eligible providers for a dispatch sweep.
type Selector struct {
	registry  *Registry
	tracker   *Tracker
	healthGap float64
}

// NewSelector builds a selector over the registry and tracker. healthGap is
// the score difference below which two providers are considered tied.
func NewSelector(reg *Registry, tracker *Tracker, healthGap float64) *Selector {
	if healthGap <= 0 {
		healthGap = defaultHealthGap
	}
	return &Selector{registry: reg, tracker: tracker, healthGap: healthGap}
}

// Order returns the enabled, non-cooling providers ranked for this call:
// health score descending when two candidates differ by more than the
// health gap, configured priority ascending otherwise. Scores are sampled
// once per call, so a sweep works against a consistent ranking even while
// outcomes keep arriving.
func (s *Selector) Order() ([]ProviderID, error) {
	all := s.registry.All()
	eligible := make([]ProviderID, 0, len(all))
	scores := make(map[ProviderID]float64, len(all))
	priorities := make(map[ProviderID]int, len(all))
	for _, pc := range all {
		if !pc.Enabled || s.tracker.IsOpen(pc.ID) {
			continue
		}
		eligible = append(eligible, pc.ID)
		scores[pc.ID] = s.tracker.HealthScore(pc.ID)
		priorities[pc.ID] = pc.Priority
	}
	if len(eligible) == 0 {
		return nil, &Error{Kind: KindNoProviders, Message: "no providers available"}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := scores[eligible[i]], scores[eligible[j]]
		if diff := si - sj; diff > s.healthGap || diff < -s.healthGap {
			return si > sj
		}
		return priorities[eligible[i]] < priorities[eligible[j]]
	})
	return eligible, nil
}
