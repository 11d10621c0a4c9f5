package graph

import (
	"sort"

	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// Match is one answer to a who-can query: the subject, the grant that
// carries the permission, and the entry that matched.
type Match struct {
	Subject rbac.SubjectRef      `json:"subject"`
	Grant   Grant                `json:"grant"`
	Entry   rbac.PermissionEntry `json:"entry"`
}

// WhoCan returns every subject that can perform verb on resource in
// apiGroup, with the grant and entry that allow it. Use the empty string
// for the core API group. Results are sorted by subject then role for
// stable output.
func (g *Graph) WhoCan(verb, resource, apiGroup string) []Match {
	var matches []Match

	for _, subject := range g.Subjects() {
		for _, grant := range g.RolesForSubject(subject) {
			rules, ok := g.RoleRules(grant.Role)
			if !ok {
				continue
			}
			entries, _ := rbac.ResolveRules(rules, grant.Role)
			for _, entry := range entries {
				if entry.Matches(apiGroup, resource, verb) {
					matches = append(matches, Match{Subject: subject, Grant: grant, Entry: entry})
				}
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Subject != matches[j].Subject {
			return matches[i].Subject.String() < matches[j].Subject.String()
		}
		return matches[i].Grant.Role.String() < matches[j].Grant.Role.String()
	})
	return matches
}
