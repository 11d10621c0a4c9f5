package rbac

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	rbacv1 "k8s.io/api/rbac/v1"
)

// Wildcard matches every value of a rule dimension. It is kept as a literal
// token throughout the engine; expanding it into concrete values would blow
// up the matrix for no gain, so membership tests handle it directly.
const Wildcard = "*"

// PermissionEntry is one flattened grant derived from a PolicyRule: the
// apiGroup x resource x verb sets of the rule, optionally restricted to
// named resources. Empty string in APIGroups means the core API group.
type PermissionEntry struct {
	APIGroups     []string `json:"api_groups"`
	Resources     []string `json:"resources"`
	Verbs         []string `json:"verbs"`
	ResourceNames []string `json:"resource_names,omitempty"`
}

// Matches reports whether the entry grants the given verb on the given
// resource in the given apiGroup. A wildcard in any dimension subsumes all
// concrete values of that dimension.
func (e PermissionEntry) Matches(apiGroup, resource, verb string) bool {
	return matchesDimension(e.APIGroups, apiGroup) &&
		matchesDimension(e.Resources, resource) &&
		matchesDimension(e.Verbs, verb)
}

// AllowsName reports whether the entry applies to a specific object name.
// An entry without resourceNames applies to all names.
func (e PermissionEntry) AllowsName(name string) bool {
	if len(e.ResourceNames) == 0 {
		return true
	}
	return slices.Contains(e.ResourceNames, name)
}

func matchesDimension(set []string, value string) bool {
	return slices.Contains(set, value) || slices.Contains(set, Wildcard)
}

// key returns a canonical identity for deduplication. The dimension sets
// are order-insensitive.
func (e PermissionEntry) key() string {
	return strings.Join(sortedCopy(e.APIGroups), ",") + "|" +
		strings.Join(sortedCopy(e.Resources), ",") + "|" +
		strings.Join(sortedCopy(e.Verbs), ",") + "|" +
		strings.Join(sortedCopy(e.ResourceNames), ",")
}

func sortedCopy(set []string) []string {
	out := slices.Clone(set)
	sort.Strings(out)
	return out
}

// ResolveRules flattens a role's rule list into deduplicated permission
// entries, one per well-formed rule. Wildcards stay literal. A rule with no
// verbs or no resources cannot grant anything and is skipped with a warning;
// a single bad rule never aborts resolution of the rest of the role.
func ResolveRules(rules []rbacv1.PolicyRule, origin RoleRef) ([]PermissionEntry, []Warning) {
	var entries []PermissionEntry
	var warnings []Warning
	seen := make(map[string]struct{}, len(rules))

	for i, rule := range rules {
		if len(rule.Verbs) == 0 {
			warnings = append(warnings, Warning{
				Kind:    WarningMalformedRule,
				Object:  origin.String(),
				Message: fmt.Sprintf("rule %d has no verbs, skipped", i),
			})
			continue
		}
		// Rules carrying only nonResourceURLs are out of the resource
		// matrix, not malformed.
		if len(rule.Resources) == 0 {
			if len(rule.NonResourceURLs) > 0 {
				continue
			}
			warnings = append(warnings, Warning{
				Kind:    WarningMalformedRule,
				Object:  origin.String(),
				Message: fmt.Sprintf("rule %d has no resources, skipped", i),
			})
			continue
		}

		entry := PermissionEntry{
			APIGroups:     sortedCopy(rule.APIGroups),
			Resources:     sortedCopy(rule.Resources),
			Verbs:         sortedCopy(rule.Verbs),
			ResourceNames: sortedCopy(rule.ResourceNames),
		}
		k := entry.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		entries = append(entries, entry)
	}

	return entries, warnings
}

// MergeEntries deduplicates entries from several roles into one effective
// permission set, sorted canonically so equal inputs give structurally equal
// output.
func MergeEntries(sets ...[]PermissionEntry) []PermissionEntry {
	seen := make(map[string]struct{})
	var merged []PermissionEntry
	for _, set := range sets {
		for _, e := range set {
			k := e.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, e)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].key() < merged[j].key()
	})
	return merged
}
