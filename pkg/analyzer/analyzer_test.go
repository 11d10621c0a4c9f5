package analyzer //nolint:testpackage // Uses internal detector helpers for testing

import (
	"errors"
	"reflect"
	"testing"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/kubeconsole/rbaclens/internal/testutil"
	"github.com/kubeconsole/rbaclens/pkg/classifier"
	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

func assertAccountCount(t *testing.T, accounts []ServiceAccountAnalysis, want int, message string) {
	t.Helper()
	if len(accounts) != want {
		t.Errorf("%s: expected %d accounts, got %d", message, want, len(accounts))
	}
}

func TestAnalyzeNilSnapshot(t *testing.T) {
	_, err := Analyze(nil)
	if !errors.Is(err, ErrNilSnapshot) {
		t.Fatalf("expected ErrNilSnapshot, got %v", err)
	}
}

func TestAnalyzeEmptySnapshot(t *testing.T) {
	analysis, err := Analyze(&rbac.Snapshot{})
	testutil.AssertNil(t, err, "empty snapshot should analyze cleanly")
	assertAccountCount(t, analysis.PrivilegedServiceAccounts, 0, "no accounts")
	testutil.AssertLen(t, analysis.OrphanedRoles, 0, "no orphans")
	testutil.AssertLen(t, analysis.UnusedServiceAccounts, 0, "no unused accounts")
	testutil.AssertLen(t, analysis.Warnings, 0, "no warnings")
}

func TestAnalyzeEffectivePermissionsAndRisk(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("pod-reader", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get", "list"})),
			testutil.NewTestRole("secret-writer", "default",
				testutil.NewPolicyRule([]string{""}, []string{"secrets"}, []string{"create"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("read-pods", "default",
				testutil.RoleRefFor("Role", "pod-reader"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
			testutil.NewTestRoleBinding("write-secrets", "default",
				testutil.RoleRefFor("Role", "secret-writer"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("app", "default"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	assertAccountCount(t, analysis.PrivilegedServiceAccounts, 1, "one account analyzed")

	account := analysis.PrivilegedServiceAccounts[0]
	testutil.AssertEqual(t, "app", account.Name, "account name")
	testutil.AssertLen(t, account.Permissions, 2, "union of both role grants")
	testutil.AssertEqual(t, classifier.RiskLevelHigh, account.RiskLevel, "secret creation dominates")
	testutil.AssertEqual(t, true, account.AutomountToken, "automount defaults to true")
	if len(account.Grants) != 2 {
		t.Errorf("got %d grants, want 2", len(account.Grants))
	}
}

func TestAnalyzeClusterAdminIsCritical(t *testing.T) {
	snap := &rbac.Snapshot{
		ClusterRoles: []rbacv1.ClusterRole{
			testutil.NewTestClusterRole("cluster-admin",
				testutil.NewPolicyRule([]string{"*"}, []string{"*"}, []string{"*"})),
		},
		ClusterRoleBindings: []rbacv1.ClusterRoleBinding{
			testutil.NewTestClusterRoleBinding("admin-binding",
				testutil.RoleRefFor("ClusterRole", "cluster-admin"),
				testutil.NewSubject("ServiceAccount", "operator", "kube-system")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("operator", "kube-system"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	account := analysis.PrivilegedServiceAccounts[0]
	testutil.AssertEqual(t, classifier.RiskLevelCritical, account.RiskLevel, "full wildcard grant")
	testutil.AssertLen(t, analysis.UnusedServiceAccounts, 0, "operator holds a grant")
}

func TestAnalyzeSecretDeletionIsHigh(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("secret-remover", "default",
				testutil.NewPolicyRule([]string{""}, []string{"secrets"}, []string{"delete"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("remove-secrets", "default",
				testutil.RoleRefFor("Role", "secret-remover"),
				testutil.NewSubject("ServiceAccount", "secret-deleter", "default")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("secret-deleter", "default"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	account := analysis.PrivilegedServiceAccounts[0]
	testutil.AssertEqual(t, classifier.RiskLevelHigh, account.RiskLevel, "secret deletion")
}

func TestAnalyzeViewerClusterRoleBindingIsLow(t *testing.T) {
	snap := &rbac.Snapshot{
		ClusterRoles: []rbacv1.ClusterRole{
			testutil.NewTestClusterRole("viewer",
				testutil.NewPolicyRule([]string{""}, []string{"pods", "services"}, []string{"get", "list", "watch"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("view-team-a", "team-a",
				testutil.RoleRefFor("ClusterRole", "viewer"),
				testutil.NewSubject("ServiceAccount", "viewer-sa", "team-a")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("viewer-sa", "team-a"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	account := analysis.PrivilegedServiceAccounts[0]
	testutil.AssertEqual(t, classifier.RiskLevelLow, account.RiskLevel, "read-only access")
	if len(account.Grants) != 1 || account.Grants[0].Namespace != "team-a" {
		t.Fatalf("grant should be scoped to the binding namespace, got %+v", account.Grants)
	}
}

func TestAnalyzeOrphanedRoles(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("bound", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"})),
			testutil.NewTestRole("orphan", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"})),
		},
		ClusterRoles: []rbacv1.ClusterRole{
			testutil.NewTestClusterRole("cluster-orphan",
				testutil.NewPolicyRule([]string{""}, []string{"nodes"}, []string{"get"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("bind", "default",
				testutil.RoleRefFor("Role", "bound"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	testutil.AssertLen(t, analysis.OrphanedRoles, 2, "unbound role and cluster role are orphaned")

	want := []rbac.RoleRef{
		rbac.NewClusterRoleRef("cluster-orphan"),
		rbac.NewRoleRef("default", "orphan"),
	}
	if !reflect.DeepEqual(analysis.OrphanedRoles, want) {
		t.Errorf("orphaned roles = %v, want %v", analysis.OrphanedRoles, want)
	}
}

func TestAnalyzeInvalidSubjectsDoNotOrphanRole(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("pod-reader", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("bind", "default",
				testutil.RoleRefFor("Role", "pod-reader"),
				testutil.NewSubject("ServiceAccount", "no-namespace", "")),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	testutil.AssertLen(t, analysis.OrphanedRoles, 0,
		"a resolved binding references the role even when all its subjects are skipped")
	testutil.AssertLen(t, analysis.Warnings, 1, "skipped subject is reported")
}

func TestAnalyzeUnusedServiceAccounts(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("pod-reader", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("read-pods", "default",
				testutil.RoleRefFor("Role", "pod-reader"),
				testutil.NewSubject("ServiceAccount", "active", "default")),
			// Dangling roleRef: "ghost" is referenced by a binding but the
			// binding grants nothing, so the account is still unused.
			testutil.NewTestRoleBinding("dangling", "default",
				testutil.RoleRefFor("Role", "missing-role"),
				testutil.NewSubject("ServiceAccount", "ghost", "default")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("active", "default"),
			testutil.NewTestServiceAccount("ghost", "default"),
			testutil.NewTestServiceAccount("idle", "default"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")

	want := []rbac.ServiceAccountRef{
		{Namespace: "default", Name: "ghost"},
		{Namespace: "default", Name: "idle"},
	}
	if !reflect.DeepEqual(analysis.UnusedServiceAccounts, want) {
		t.Errorf("unused accounts = %v, want %v", analysis.UnusedServiceAccounts, want)
	}

	// The dangling roleRef is surfaced as a warning, not an error.
	testutil.AssertLen(t, analysis.Warnings, 1, "dangling roleRef warning")
	testutil.AssertEqual(t, rbac.WarningDanglingRoleRef, analysis.Warnings[0].Kind, "warning kind")
}

func TestAnalyzeWarnsOnMalformedRulesOfUnboundRoles(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("broken", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, nil)),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	testutil.AssertLen(t, analysis.Warnings, 1, "malformed rule reported even without bindings")
	testutil.AssertEqual(t, rbac.WarningMalformedRule, analysis.Warnings[0].Kind, "warning kind")
}

func TestAnalyzeAccountOrdering(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("secret-writer", "default",
				testutil.NewPolicyRule([]string{""}, []string{"secrets"}, []string{"create"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("write-secrets", "default",
				testutil.RoleRefFor("Role", "secret-writer"),
				testutil.NewSubject("ServiceAccount", "zeta", "default")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("alpha", "default"),
			testutil.NewTestServiceAccount("zeta", "default"),
		},
	}

	analysis, err := Analyze(snap)
	testutil.AssertNil(t, err, "analysis should succeed")
	assertAccountCount(t, analysis.PrivilegedServiceAccounts, 2, "both accounts analyzed")

	// High risk sorts before low risk regardless of name order.
	testutil.AssertEqual(t, "zeta", analysis.PrivilegedServiceAccounts[0].Name, "risky account first")
	testutil.AssertEqual(t, "alpha", analysis.PrivilegedServiceAccounts[1].Name, "low risk account second")
}

func TestAnalyzeDeterministic(t *testing.T) {
	snap := &rbac.Snapshot{
		Roles: []rbacv1.Role{
			testutil.NewTestRole("pod-reader", "default",
				testutil.NewPolicyRule([]string{""}, []string{"pods"}, []string{"get"})),
			testutil.NewTestRole("secret-writer", "default",
				testutil.NewPolicyRule([]string{""}, []string{"secrets"}, []string{"create"})),
		},
		RoleBindings: []rbacv1.RoleBinding{
			testutil.NewTestRoleBinding("read-pods", "default",
				testutil.RoleRefFor("Role", "pod-reader"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
			testutil.NewTestRoleBinding("write-secrets", "default",
				testutil.RoleRefFor("Role", "secret-writer"),
				testutil.NewSubject("ServiceAccount", "app", "default")),
		},
		ServiceAccounts: []corev1.ServiceAccount{
			testutil.NewTestServiceAccount("app", "default"),
			testutil.NewTestServiceAccount("idle", "default"),
		},
	}

	first, err := Analyze(snap)
	testutil.AssertNil(t, err, "first analysis")
	second, err := Analyze(snap)
	testutil.AssertNil(t, err, "second analysis")

	if !reflect.DeepEqual(first, second) {
		t.Error("identical snapshots should produce structurally equal analyses")
	}
}

func TestAnalyzeAutomountDisabled(t *testing.T) {
	sa := testutil.NewTestServiceAccount("locked-down", "default")
	disabled := false
	sa.AutomountServiceAccountToken = &disabled

	analysis, err := Analyze(&rbac.Snapshot{
		ServiceAccounts: []corev1.ServiceAccount{sa},
	})
	testutil.AssertNil(t, err, "analysis should succeed")
	testutil.AssertEqual(t, false, analysis.PrivilegedServiceAccounts[0].AutomountToken,
		"explicit automount setting respected")
}

func TestSummarize(t *testing.T) {
	analysis := &RBACAnalysis{
		PrivilegedServiceAccounts: []ServiceAccountAnalysis{
			{Name: "a", RiskLevel: classifier.RiskLevelCritical},
			{Name: "b", RiskLevel: classifier.RiskLevelHigh},
			{Name: "c", RiskLevel: classifier.RiskLevelHigh},
			{Name: "d", RiskLevel: classifier.RiskLevelLow},
		},
		OrphanedRoles:         []rbac.RoleRef{rbac.NewClusterRoleRef("orphan")},
		UnusedServiceAccounts: []rbac.ServiceAccountRef{{Namespace: "default", Name: "idle"}},
		Warnings:              []rbac.Warning{{Kind: rbac.WarningMalformedRule}},
	}

	s := Summarize(analysis)
	testutil.AssertEqual(t, 4, s.TotalServiceAccounts, "total")
	testutil.AssertEqual(t, 1, s.CriticalRisk, "critical")
	testutil.AssertEqual(t, 2, s.HighRisk, "high")
	testutil.AssertEqual(t, 0, s.MediumRisk, "medium")
	testutil.AssertEqual(t, 1, s.LowRisk, "low")
	testutil.AssertEqual(t, 1, s.OrphanedRoles, "orphans")
	testutil.AssertEqual(t, 1, s.UnusedAccounts, "unused")
	testutil.AssertEqual(t, 1, s.Warnings, "warnings")
}
