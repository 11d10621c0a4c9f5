// Package analyzer assembles the full RBAC analysis report: effective
// permissions and risk per service account, orphaned roles, and unused
// service accounts. Analyze is a pure function over an in-memory snapshot;
// all I/O belongs to the caller.
package analyzer

import (
	"errors"
	"sort"

	"github.com/kubeconsole/rbaclens/pkg/classifier"
	"github.com/kubeconsole/rbaclens/pkg/graph"
	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// ErrNilSnapshot is returned when the caller violates the input contract.
// Data-quality problems inside a snapshot never produce an error.
var ErrNilSnapshot = errors.New("analyzer: snapshot must not be nil")

// ServiceAccountAnalysis is one service account annotated with its effective
// permission set and computed risk level.
type ServiceAccountAnalysis struct {
	Namespace      string                 `json:"namespace"`
	Name           string                 `json:"name"`
	Permissions    []rbac.PermissionEntry `json:"permissions"`
	Grants         []graph.Grant          `json:"grants,omitempty"`
	RiskLevel      classifier.RiskLevel   `json:"risk_level"`
	AutomountToken bool                   `json:"automount_token"`
}

// RBACAnalysis is the immutable result snapshot consumed by the
// presentation layer.
type RBACAnalysis struct {
	PrivilegedServiceAccounts []ServiceAccountAnalysis `json:"privileged_service_accounts"`
	OrphanedRoles             []rbac.RoleRef           `json:"orphaned_roles"`
	UnusedServiceAccounts     []rbac.ServiceAccountRef `json:"unused_service_accounts"`
	Warnings                  []rbac.Warning           `json:"warnings,omitempty"`
}

// Analyze computes the analysis for one snapshot: build the binding graph,
// derive each service account's effective permissions as the union across
// all its (role, binding) grants, classify risk, then detect orphaned roles
// and unused accounts. Identical inputs always produce structurally equal
// output.
func Analyze(snap *rbac.Snapshot) (*RBACAnalysis, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	g := graph.Build(snap)

	// Resolve every role exactly once, bound or not, so malformed rules are
	// reported even for roles nothing references.
	entriesByRole := make(map[rbac.RoleRef][]rbac.PermissionEntry, len(snap.Roles)+len(snap.ClusterRoles))
	warnings := append([]rbac.Warning(nil), g.Warnings()...)
	for i := range snap.Roles {
		ref := rbac.NewRoleRef(snap.Roles[i].Namespace, snap.Roles[i].Name)
		entries, ruleWarnings := rbac.ResolveRules(snap.Roles[i].Rules, ref)
		entriesByRole[ref] = entries
		warnings = append(warnings, ruleWarnings...)
	}
	for i := range snap.ClusterRoles {
		ref := rbac.NewClusterRoleRef(snap.ClusterRoles[i].Name)
		entries, ruleWarnings := rbac.ResolveRules(snap.ClusterRoles[i].Rules, ref)
		entriesByRole[ref] = entries
		warnings = append(warnings, ruleWarnings...)
	}

	accounts := make([]ServiceAccountAnalysis, 0, len(snap.ServiceAccounts))
	for i := range snap.ServiceAccounts {
		sa := &snap.ServiceAccounts[i]
		subject := rbac.NewServiceAccountSubject(sa.Namespace, sa.Name)
		grants := g.RolesForSubject(subject)

		sets := make([][]rbac.PermissionEntry, 0, len(grants))
		for _, grant := range grants {
			sets = append(sets, entriesByRole[grant.Role])
		}
		permissions := rbac.MergeEntries(sets...)

		automount := true
		if sa.AutomountServiceAccountToken != nil {
			automount = *sa.AutomountServiceAccountToken
		}

		accounts = append(accounts, ServiceAccountAnalysis{
			Namespace:      sa.Namespace,
			Name:           sa.Name,
			Permissions:    permissions,
			Grants:         sortedGrants(grants),
			RiskLevel:      classifier.Classify(permissions),
			AutomountToken: automount,
		})
	}

	// Risk descending, then name and namespace ascending, independent of
	// input collection order.
	sort.Slice(accounts, func(i, j int) bool {
		pi, pj := classifier.Priority(accounts[i].RiskLevel), classifier.Priority(accounts[j].RiskLevel)
		if pi != pj {
			return pi > pj
		}
		if accounts[i].Name != accounts[j].Name {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].Namespace < accounts[j].Namespace
	})

	return &RBACAnalysis{
		PrivilegedServiceAccounts: accounts,
		OrphanedRoles:             findOrphanedRoles(snap, g),
		UnusedServiceAccounts:     findUnusedServiceAccounts(snap, g),
		Warnings:                  warnings,
	}, nil
}

func sortedGrants(grants []graph.Grant) []graph.Grant {
	out := append([]graph.Grant(nil), grants...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role.String() < out[j].Role.String()
		}
		return out[i].Binding.String() < out[j].Binding.String()
	})
	return out
}

// Summary aggregates per-level counts of analyzed service accounts.
type Summary struct {
	TotalServiceAccounts int `json:"total_service_accounts"`
	CriticalRisk         int `json:"critical_risk"`
	HighRisk             int `json:"high_risk"`
	MediumRisk           int `json:"medium_risk"`
	LowRisk              int `json:"low_risk"`
	OrphanedRoles        int `json:"orphaned_roles"`
	UnusedAccounts       int `json:"unused_service_accounts"`
	Warnings             int `json:"warnings"`
}

// Summarize computes the summary counters for a report.
func Summarize(a *RBACAnalysis) Summary {
	s := Summary{
		TotalServiceAccounts: len(a.PrivilegedServiceAccounts),
		OrphanedRoles:        len(a.OrphanedRoles),
		UnusedAccounts:       len(a.UnusedServiceAccounts),
		Warnings:             len(a.Warnings),
	}
	for _, account := range a.PrivilegedServiceAccounts {
		switch account.RiskLevel {
		case classifier.RiskLevelCritical:
			s.CriticalRisk++
		case classifier.RiskLevelHigh:
			s.HighRisk++
		case classifier.RiskLevelMedium:
			s.MediumRisk++
		case classifier.RiskLevelLow:
			s.LowRisk++
		}
	}
	return s
}
