package graph //nolint:testpackage // Uses internal graph indexes for testing

import (
	"strings"
	"testing"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/kubeconsole/rbaclens/internal/testutil"
	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

func TestDOT(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("pod-reader", "default", podReaderRule()),
		},
		ClusterRoles: []rbacv1.ClusterRole{
			testutil.NewTestClusterRole("viewer", podReaderRule()),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("read-pods", "default",
				testutil.RoleRefFor("Role", "pod-reader"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
		},
		ClusterRoleBindings: []rbacv1.ClusterRoleBinding{
			testutil.NewTestClusterRoleBinding("view-all",
				testutil.RoleRefFor("ClusterRole", "viewer"),
				testutil.NewSubject("User", "alice", "")),
		},
	}

	out := Build(snap).DOT().String()

	if !strings.HasPrefix(out, "digraph") {
		t.Fatalf("output does not start with digraph: %q", out[:min(len(out), 40)])
	}
	for _, want := range []string{
		"subgraph cluster_", // namespaced objects grouped into a cluster
		"default",
		"pod-reader",
		"read-pods",
		"viewer",
		"view-all",
		"alice",
		"doubleoctagon", // cluster-scoped role and binding shape
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestDOTEmptyGraph(t *testing.T) {
	out := Build(&rbac.Snapshot{}).DOT().String()
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("empty graph should still render a digraph, got %q", out)
	}
}
