// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package placement scores hosts as candidates for a new worker
// binding: a disqualification sentinel score, a weighted composite for
// eligible candidates, and a descending sort with lexicographic
// tie-break for determinism.
package placement

import (
	"sort"

	"github.com/bureau-foundation/hostfleet/internal/registry"
)

// Ineligible is the sentinel score for a disqualified host.
const Ineligible = -1

// MaxWorkersPerHost bounds how many workers a single host may carry.
const MaxWorkersPerHost = 5

// DisqualifyReason explains why a host was not a candidate.
type DisqualifyReason string

const (
	ReasonNotActive  DisqualifyReason = "not_active"
	ReasonAtCapacity DisqualifyReason = "at_capacity"
	ReasonUnhealthy  DisqualifyReason = "unhealthy"
)

const unhealthyThreshold = 30

// Candidate pairs a host with its placement score, or the reason it
// was disqualified.
type Candidate struct {
	HostID     string
	Score      int
	Disqualify DisqualifyReason // empty when Score != Ineligible
}

// Score evaluates a single host for hosting a worker bound to
// projectID (empty if the worker has no project affinity). Returns
// Ineligible and a reason if the host cannot accept the worker.
func Score(host registry.Host, projectID string) (int, DisqualifyReason) {
	if host.Status != registry.StatusActive {
		return Ineligible, ReasonNotActive
	}
	workerCount := len(host.Workers)
	if workerCount >= MaxWorkersPerHost {
		return Ineligible, ReasonAtCapacity
	}
	if host.HealthScore < unhealthyThreshold {
		return Ineligible, ReasonUnhealthy
	}

	score := host.HealthScore + (MaxWorkersPerHost-workerCount)*10 + affinityBonus(host, projectID)
	return score, ""
}

// affinityBonus rewards a host that already runs workers from the
// same project: 10 for 3-or-more matches, 5 for at least one, else 0.
func affinityBonus(host registry.Host, projectID string) int {
	if projectID == "" {
		return 0
	}
	matches := 0
	for _, binding := range host.Workers {
		if binding.ProjectID == projectID {
			matches++
		}
	}
	switch {
	case matches >= 3:
		return 10
	case matches >= 1:
		return 5
	default:
		return 0
	}
}

// Rank scores every host in hosts for projectID and returns the
// eligible candidates sorted by score descending, ties broken by host
// id ascending. Disqualified hosts are omitted.
func Rank(hosts []registry.Host, projectID string) []Candidate {
	var candidates []Candidate
	for _, host := range hosts {
		score, reason := Score(host, projectID)
		if score == Ineligible {
			continue
		}
		candidates = append(candidates, Candidate{HostID: host.ID, Score: score, Disqualify: reason})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].HostID < candidates[j].HostID
	})
	return candidates
}

// SelectOutcome is the category of a placement decision, reported to
// callers (and the admin socket) alongside the chosen host, if any.
type SelectOutcome string

const (
	OutcomeSelected        SelectOutcome = "selected"
	OutcomeNoHosts         SelectOutcome = "no_hosts"
	OutcomeAllDisqualified SelectOutcome = "all_disqualified"
)

// Selection is the result of Select.
type Selection struct {
	HostID  string // empty unless Outcome == OutcomeSelected
	Outcome SelectOutcome
	Scored  []Candidate
}

// Select picks the best host for a new worker binding. Returns
// OutcomeNoHosts for an empty fleet, OutcomeAllDisqualified when every
// host was scored but none qualified, or OutcomeSelected with the
// winning host id.
func Select(hosts []registry.Host, projectID string) Selection {
	if len(hosts) == 0 {
		return Selection{Outcome: OutcomeNoHosts}
	}

	candidates := Rank(hosts, projectID)
	if len(candidates) == 0 {
		return Selection{Outcome: OutcomeAllDisqualified}
	}

	return Selection{HostID: candidates[0].HostID, Outcome: OutcomeSelected, Scored: candidates}
}
