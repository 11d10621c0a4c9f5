package kubernetes //nolint:testpackage // Uses internal clientset field for testing

import (
	"context"
	"fmt"
	"testing"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kubeconsole/rbaclens/internal/testutil"
)

func TestFetchSnapshot(t *testing.T) {
	role := testutil.NewTestRole("pod-reader", "default",
		testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"}))
	clusterRole := testutil.NewTestClusterRole("viewer",
		testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"}))
	binding := testutil.NewTestRoleBinding("read-pods", "default",
		testutil.RoleRefFor("Role", "pod-reader"),
		testutil.NewSubject("ServiceAccount", "app", "default"))
	clusterBinding := testutil.NewTestClusterRoleBinding("view-all",
		testutil.RoleRefFor("ClusterRole", "viewer"),
		testutil.NewSubject("ServiceAccount", "app", "default"))
	sa := testutil.NewTestServiceAccount("app", "default")

	clientset := fake.NewSimpleClientset(&role, &clusterRole, &binding, &clusterBinding, &sa)
	client := NewClientFromClientset(clientset)

	snap, err := client.FetchSnapshot(context.Background(), "")
	testutil.AssertNil(t, err, "fetch should succeed")
	testutil.AssertNotNil(t, snap, "snapshot returned")

	if len(snap.Roles) != 1 || len(snap.ClusterRoles) != 1 ||
		len(snap.RoleBindings) != 1 || len(snap.ClusterRoleBindings) != 1 ||
		len(snap.ServiceAccounts) != 1 {
		t.Errorf("incomplete snapshot: %d/%d/%d/%d/%d",
			len(snap.Roles), len(snap.ClusterRoles),
			len(snap.RoleBindings), len(snap.ClusterRoleBindings),
			len(snap.ServiceAccounts))
	}
}

func TestFetchSnapshotNamespaceScope(t *testing.T) {
	defaultRole := testutil.NewTestRole("pod-reader", "default",
		testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"}))
	otherRole := testutil.NewTestRole("pod-reader", "other",
		testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"}))
	clusterRole := testutil.NewTestClusterRole("viewer",
		testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"}))

	clientset := fake.NewSimpleClientset(&defaultRole, &otherRole, &clusterRole)
	client := NewClientFromClientset(clientset)

	snap, err := client.FetchSnapshot(context.Background(), "default")
	testutil.AssertNil(t, err, "fetch should succeed")

	if len(snap.Roles) != 1 {
		t.Errorf("got %d roles, want 1 (namespace scoped)", len(snap.Roles))
	}
	// Cluster-scoped collections are always fetched in full.
	if len(snap.ClusterRoles) != 1 {
		t.Errorf("got %d cluster roles, want 1", len(snap.ClusterRoles))
	}
}

func TestFetchSnapshotEmptyCluster(t *testing.T) {
	client := NewClientFromClientset(fake.NewSimpleClientset())

	snap, err := client.FetchSnapshot(context.Background(), "")
	testutil.AssertNil(t, err, "fetch should succeed")
	if len(snap.Roles) != 0 || len(snap.ClusterRoles) != 0 ||
		len(snap.RoleBindings) != 0 || len(snap.ClusterRoleBindings) != 0 ||
		len(snap.ServiceAccounts) != 0 {
		t.Error("expected empty snapshot")
	}
}

func TestFetchSnapshotListFailureFailsWholeFetch(t *testing.T) {
	reactions := []string{"roles", "clusterroles", "rolebindings", "clusterrolebindings", "serviceaccounts"}

	for _, resource := range reactions {
		t.Run(resource, func(t *testing.T) {
			clientset := fake.NewSimpleClientset()
			clientset.PrependReactor("list", resource,
				func(k8stesting.Action) (bool, runtime.Object, error) {
					return true, nil, fmt.Errorf("server unavailable")
				})

			client := NewClientFromClientset(clientset)
			snap, err := client.FetchSnapshot(context.Background(), "")
			testutil.AssertNotNil(t, err, "list failure should fail the fetch")
			if snap != nil {
				t.Error("no partial snapshot on failure")
			}
		})
	}
}

func TestGetClientset(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	client := NewClientFromClientset(clientset)
	if client.GetClientset() != clientset {
		t.Error("GetClientset should return the wrapped clientset")
	}
}
