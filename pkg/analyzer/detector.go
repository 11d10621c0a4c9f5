package analyzer

import (
	"sort"

	"github.com/kubeconsole/rbaclens/pkg/graph"
	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// findOrphanedRoles returns every Role and ClusterRole no binding resolves
// to. The graph already indexes role->bindings, so this is a set difference.
func findOrphanedRoles(snap *rbac.Snapshot, g *graph.Graph) []rbac.RoleRef {
	var orphaned []rbac.RoleRef

	for i := range snap.Roles {
		ref := rbac.NewRoleRef(snap.Roles[i].Namespace, snap.Roles[i].Name)
		if len(g.BindingsForRole(ref)) == 0 {
			orphaned = append(orphaned, ref)
		}
	}
	for i := range snap.ClusterRoles {
		ref := rbac.NewClusterRoleRef(snap.ClusterRoles[i].Name)
		if len(g.BindingsForRole(ref)) == 0 {
			orphaned = append(orphaned, ref)
		}
	}

	sort.Slice(orphaned, func(i, j int) bool {
		return orphaned[i].String() < orphaned[j].String()
	})
	return orphaned
}

// findUnusedServiceAccounts returns every service account with no resolved
// role grant, including accounts no binding references at all. An account
// bound only through a dangling roleRef counts as unused: it holds nothing.
func findUnusedServiceAccounts(snap *rbac.Snapshot, g *graph.Graph) []rbac.ServiceAccountRef {
	var unused []rbac.ServiceAccountRef

	for i := range snap.ServiceAccounts {
		sa := &snap.ServiceAccounts[i]
		subject := rbac.NewServiceAccountSubject(sa.Namespace, sa.Name)
		if len(g.RolesForSubject(subject)) == 0 {
			unused = append(unused, rbac.ServiceAccountRef{Namespace: sa.Namespace, Name: sa.Name})
		}
	}

	sort.Slice(unused, func(i, j int) bool {
		if unused[i].Namespace != unused[j].Namespace {
			return unused[i].Namespace < unused[j].Namespace
		}
		return unused[i].Name < unused[j].Name
	})
	return unused
}
