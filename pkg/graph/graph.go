// Package graph links binding subjects to the roles they are granted,
// indexed in both directions so "what can subject Y do" and "who holds
// role X" are both single map lookups.
package graph

import (
	"fmt"
	"sort"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// Grant is one edge from a subject to a role, via the binding that granted
// it. Namespace is the scope of the grant: the binding's namespace for
// RoleBindings (including RoleBindings to ClusterRoles), empty for
// cluster-wide grants.
type Grant struct {
	Role      rbac.RoleRef    `json:"role"`
	Binding   rbac.BindingRef `json:"binding"`
	Namespace string          `json:"namespace,omitempty"`
}

// Graph is the subject/role adjacency built from one snapshot. It is
// immutable after Build and safe for concurrent reads.
type Graph struct {
	roleRules       map[rbac.RoleRef][]rbacv1.PolicyRule
	grantsBySubject map[rbac.SubjectRef][]Grant
	bindingsByRole  map[rbac.RoleRef][]rbac.BindingRef
	subjectsByRole  map[rbac.RoleRef][]rbac.SubjectRef
	warnings        []rbac.Warning
}

// Build constructs the graph in two passes: index every Role and ClusterRole
// by identity key, then walk every binding, resolve its roleRef against the
// index and insert a subject->(role, binding) edge per subject. Unresolvable
// roleRefs and invalid subjects are recorded as warnings and never halt the
// pass.
func Build(snap *rbac.Snapshot) *Graph {
	g := &Graph{
		roleRules:       make(map[rbac.RoleRef][]rbacv1.PolicyRule),
		grantsBySubject: make(map[rbac.SubjectRef][]Grant),
		bindingsByRole:  make(map[rbac.RoleRef][]rbac.BindingRef),
		subjectsByRole:  make(map[rbac.RoleRef][]rbac.SubjectRef),
	}

	// Pass 1: role index.
	for i := range snap.Roles {
		r := &snap.Roles[i]
		g.roleRules[rbac.NewRoleRef(r.Namespace, r.Name)] = r.Rules
	}
	for i := range snap.ClusterRoles {
		cr := &snap.ClusterRoles[i]
		g.roleRules[rbac.NewClusterRoleRef(cr.Name)] = cr.Rules
	}

	// Pass 2: binding edges.
	for i := range snap.RoleBindings {
		rb := &snap.RoleBindings[i]
		bindingRef := rbac.BindingRef{Kind: "RoleBinding", Namespace: rb.Namespace, Name: rb.Name}
		roleRef, ok := g.resolveRoleRef(rb.RoleRef, rb.Namespace, bindingRef)
		g.addEdges(bindingRef, roleRef, ok, rb.Namespace, rb.Subjects)
	}
	for i := range snap.ClusterRoleBindings {
		crb := &snap.ClusterRoleBindings[i]
		bindingRef := rbac.BindingRef{Kind: "ClusterRoleBinding", Name: crb.Name}
		roleRef, ok := g.resolveClusterRoleRef(crb.RoleRef, bindingRef)
		g.addEdges(bindingRef, roleRef, ok, "", crb.Subjects)
	}

	return g
}

// resolveRoleRef resolves a RoleBinding's roleRef. Role lookups are scoped
// to the binding's own namespace; ClusterRole lookups are global.
func (g *Graph) resolveRoleRef(ref rbacv1.RoleRef, namespace string, binding rbac.BindingRef) (rbac.RoleRef, bool) {
	var roleRef rbac.RoleRef
	switch ref.Kind {
	case "Role":
		roleRef = rbac.NewRoleRef(namespace, ref.Name)
	case "ClusterRole":
		roleRef = rbac.NewClusterRoleRef(ref.Name)
	default:
		g.warn(rbac.WarningInvalidRoleRef, binding.String(),
			fmt.Sprintf("roleRef kind %q is not Role or ClusterRole", ref.Kind))
		return rbac.RoleRef{}, false
	}
	if _, exists := g.roleRules[roleRef]; !exists {
		g.warn(rbac.WarningDanglingRoleRef, binding.String(),
			fmt.Sprintf("roleRef %s does not resolve, binding grants nothing", roleRef))
		return rbac.RoleRef{}, false
	}
	return roleRef, true
}

// resolveClusterRoleRef resolves a ClusterRoleBinding's roleRef, which may
// only name a ClusterRole.
func (g *Graph) resolveClusterRoleRef(ref rbacv1.RoleRef, binding rbac.BindingRef) (rbac.RoleRef, bool) {
	if ref.Kind != "ClusterRole" {
		g.warn(rbac.WarningInvalidRoleRef, binding.String(),
			fmt.Sprintf("ClusterRoleBinding may only reference a ClusterRole, got %q", ref.Kind))
		return rbac.RoleRef{}, false
	}
	roleRef := rbac.NewClusterRoleRef(ref.Name)
	if _, exists := g.roleRules[roleRef]; !exists {
		g.warn(rbac.WarningDanglingRoleRef, binding.String(),
			fmt.Sprintf("roleRef %s does not resolve, binding grants nothing", roleRef))
		return rbac.RoleRef{}, false
	}
	return roleRef, true
}

// addEdges inserts one grant per valid subject. When the roleRef did not
// resolve the binding contributes no permissions, but subjects are still
// validated so malformed entries are surfaced either way.
func (g *Graph) addEdges(binding rbac.BindingRef, role rbac.RoleRef, resolved bool, scope string, subjects []rbacv1.Subject) {
	// A binding with a resolved role references it no matter how many of its
	// subjects are valid, so the role is registered before the subject walk.
	if resolved && !g.roleHasBinding(role, binding) {
		g.bindingsByRole[role] = append(g.bindingsByRole[role], binding)
	}
	for _, subject := range subjects {
		ref, ok := g.subjectRef(subject, binding)
		if !ok || !resolved {
			continue
		}
		grant := Grant{Role: role, Binding: binding, Namespace: scope}
		if g.hasGrant(ref, grant) {
			continue
		}
		g.grantsBySubject[ref] = append(g.grantsBySubject[ref], grant)
		if !g.roleHasSubject(role, ref) {
			g.subjectsByRole[role] = append(g.subjectsByRole[role], ref)
		}
	}
}

// subjectRef validates a binding subject against the kind rules: namespace
// is required iff the kind is ServiceAccount. Inconsistent subjects are
// skipped with a warning.
func (g *Graph) subjectRef(subject rbacv1.Subject, binding rbac.BindingRef) (rbac.SubjectRef, bool) {
	switch subject.Kind {
	case "ServiceAccount":
		if subject.Namespace == "" {
			g.warn(rbac.WarningInvalidSubject, binding.String(),
				fmt.Sprintf("ServiceAccount subject %q has no namespace, skipped", subject.Name))
			return rbac.SubjectRef{}, false
		}
	case "User", "Group":
		if subject.Namespace != "" {
			g.warn(rbac.WarningInvalidSubject, binding.String(),
				fmt.Sprintf("%s subject %q must not set a namespace, skipped", subject.Kind, subject.Name))
			return rbac.SubjectRef{}, false
		}
	default:
		g.warn(rbac.WarningInvalidSubject, binding.String(),
			fmt.Sprintf("subject %q has unknown kind %q, skipped", subject.Name, subject.Kind))
		return rbac.SubjectRef{}, false
	}
	return rbac.SubjectRef{Kind: subject.Kind, Name: subject.Name, Namespace: subject.Namespace}, true
}

func (g *Graph) hasGrant(subject rbac.SubjectRef, grant Grant) bool {
	for _, existing := range g.grantsBySubject[subject] {
		if existing == grant {
			return true
		}
	}
	return false
}

func (g *Graph) roleHasBinding(role rbac.RoleRef, binding rbac.BindingRef) bool {
	for _, existing := range g.bindingsByRole[role] {
		if existing == binding {
			return true
		}
	}
	return false
}

func (g *Graph) roleHasSubject(role rbac.RoleRef, subject rbac.SubjectRef) bool {
	for _, existing := range g.subjectsByRole[role] {
		if existing == subject {
			return true
		}
	}
	return false
}

func (g *Graph) warn(kind rbac.WarningKind, object, message string) {
	g.warnings = append(g.warnings, rbac.Warning{Kind: kind, Object: object, Message: message})
}

// RolesForSubject returns every (role, binding) pair granted to the subject.
// Pairs are unique; two bindings to the same role yield two grants, the same
// binding listed twice yields one.
func (g *Graph) RolesForSubject(subject rbac.SubjectRef) []Grant {
	return g.grantsBySubject[subject]
}

// BindingsForRole returns the bindings whose roleRef resolved to the role.
func (g *Graph) BindingsForRole(role rbac.RoleRef) []rbac.BindingRef {
	return g.bindingsByRole[role]
}

// SubjectsForRole returns the subjects holding the role through any binding.
func (g *Graph) SubjectsForRole(role rbac.RoleRef) []rbac.SubjectRef {
	return g.subjectsByRole[role]
}

// RoleRules returns the rule list of an indexed role.
func (g *Graph) RoleRules(role rbac.RoleRef) ([]rbacv1.PolicyRule, bool) {
	rules, ok := g.roleRules[role]
	return rules, ok
}

// Subjects returns every subject with at least one grant, sorted by
// kind/namespace/name.
func (g *Graph) Subjects() []rbac.SubjectRef {
	subjects := make([]rbac.SubjectRef, 0, len(g.grantsBySubject))
	for subject := range g.grantsBySubject {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].String() < subjects[j].String()
	})
	return subjects
}

// Warnings returns the data-quality issues recorded during Build.
func (g *Graph) Warnings() []rbac.Warning {
	return g.warnings
}
