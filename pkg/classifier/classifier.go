// Package classifier scores an effective permission set into a risk level.
//
// The policy is an ordered precedence table evaluated per entry, first match
// wins, and the highest tier matched by any entry decides the subject's
// level regardless of entry order. It is an advisory heuristic aligned with
// common RBAC hardening guidance, not a guarantee: validate it against your
// own security baseline before acting on the output.
package classifier

import (
	"slices"

	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// RiskLevel represents the risk level of a permission set.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"

	// Risk priority values.
	riskPriorityCritical = 4
	riskPriorityHigh     = 3
	riskPriorityMedium   = 2
	riskPriorityLow      = 1
	riskPriorityDefault  = 0
)

// Priority maps a risk level to its ordering weight, highest first.
func Priority(level RiskLevel) int {
	switch level {
	case RiskLevelCritical:
		return riskPriorityCritical
	case RiskLevelHigh:
		return riskPriorityHigh
	case RiskLevelMedium:
		return riskPriorityMedium
	case RiskLevelLow:
		return riskPriorityLow
	default:
		return riskPriorityDefault
	}
}

// tier is one row of the precedence table.
type tier struct {
	level RiskLevel
	match func(e rbac.PermissionEntry) bool
}

var (
	// Writable access to these resources is privilege escalation in one or
	// two steps: stealing credentials or granting yourself a better role.
	escalationResources = []string{"secrets", "clusterroles", "clusterrolebindings", "roles", "rolebindings"}

	workloadResources = []string{"pods", "deployments", "daemonsets", "statefulsets", "jobs"}

	destructiveVerbs = []string{"create", "delete", "deletecollection"}
	writeVerbs       = []string{"create", "update", "patch", "delete"}
)

// policyTiers returns the precedence table, highest tier first.
func policyTiers() []tier {
	return []tier{
		{
			// Full cluster-admin equivalent.
			level: RiskLevelCritical,
			match: func(e rbac.PermissionEntry) bool {
				return slices.Contains(e.APIGroups, rbac.Wildcard) &&
					slices.Contains(e.Resources, rbac.Wildcard) &&
					slices.Contains(e.Verbs, rbac.Wildcard)
			},
		},
		{
			level: RiskLevelHigh,
			match: func(e rbac.PermissionEntry) bool {
				if anyVerb(e, destructiveVerbs) && anyResource(e, escalationResources) {
					return true
				}
				return anyVerb(e, []string{"escalate", "bind"}) &&
					anyResource(e, []string{"roles", "clusterroles"})
			},
		},
		{
			level: RiskLevelMedium,
			match: func(e rbac.PermissionEntry) bool {
				if anyVerb(e, writeVerbs) && anyResource(e, workloadResources) {
					return true
				}
				// Any access to secrets or configmaps not caught by the
				// high tier.
				return anyResource(e, []string{"secrets", "configmaps"})
			},
		},
	}
}

// Classify returns the risk level of an effective permission set. Sets with
// no entries, or only narrowly scoped read grants, are low.
func Classify(entries []rbac.PermissionEntry) RiskLevel {
	tiers := policyTiers()
	level := RiskLevelLow
	for _, entry := range entries {
		for _, t := range tiers {
			if !t.match(entry) {
				continue
			}
			if Priority(t.level) > Priority(level) {
				level = t.level
			}
			break
		}
		if level == RiskLevelCritical {
			break
		}
	}
	return level
}

// anyVerb reports whether the entry grants any of the verbs, with wildcard
// subsumption.
func anyVerb(e rbac.PermissionEntry, verbs []string) bool {
	if slices.Contains(e.Verbs, rbac.Wildcard) {
		return true
	}
	for _, v := range verbs {
		if slices.Contains(e.Verbs, v) {
			return true
		}
	}
	return false
}

// anyResource reports whether the entry covers any of the resources, with
// wildcard subsumption.
func anyResource(e rbac.PermissionEntry, resources []string) bool {
	if slices.Contains(e.Resources, rbac.Wildcard) {
		return true
	}
	for _, r := range resources {
		if slices.Contains(e.Resources, r) {
			return true
		}
	}
	return false
}
