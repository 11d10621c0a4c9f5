// Package rbac defines the typed resource model shared by the analysis
// engine: the input snapshot, derived permission entries, reference keys,
// and the warnings produced while normalizing cluster data.
package rbac

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
)

// Snapshot is a fixed, point-in-time view of the five RBAC input
// collections. The engine never mutates a snapshot; recomputation over a
// fresh snapshot is the only update path.
type Snapshot struct {
	Roles               []rbacv1.Role               `json:"roles"`
	ClusterRoles        []rbacv1.ClusterRole        `json:"cluster_roles"`
	RoleBindings        []rbacv1.RoleBinding        `json:"role_bindings"`
	ClusterRoleBindings []rbacv1.ClusterRoleBinding `json:"cluster_role_bindings"`
	ServiceAccounts     []corev1.ServiceAccount     `json:"service_accounts"`
}

// RoleRef identifies a Role or ClusterRole. Namespace is empty for
// ClusterRoles, so (Kind, Namespace, Name) is a unique identity key.
type RoleRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// NewRoleRef returns the identity key for a namespaced Role.
func NewRoleRef(namespace, name string) RoleRef {
	return RoleRef{Kind: "Role", Namespace: namespace, Name: name}
}

// NewClusterRoleRef returns the identity key for a ClusterRole.
func NewClusterRoleRef(name string) RoleRef {
	return RoleRef{Kind: "ClusterRole", Name: name}
}

func (r RoleRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// SubjectRef identifies a binding subject. Namespace is set only for
// ServiceAccount subjects; the same name in two namespaces is two distinct
// identities.
type SubjectRef struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// NewServiceAccountSubject returns the subject identity of a ServiceAccount.
func NewServiceAccountSubject(namespace, name string) SubjectRef {
	return SubjectRef{Kind: "ServiceAccount", Name: name, Namespace: namespace}
}

func (s SubjectRef) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Kind, s.Namespace, s.Name)
}

// BindingRef identifies a RoleBinding or ClusterRoleBinding.
type BindingRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (b BindingRef) String() string {
	return fmt.Sprintf("%s/%s/%s", b.Kind, b.Namespace, b.Name)
}

// ServiceAccountRef identifies a ServiceAccount.
type ServiceAccountRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (s ServiceAccountRef) String() string {
	return fmt.Sprintf("%s/%s", s.Namespace, s.Name)
}

// WarningKind classifies a non-fatal data-quality issue found while
// normalizing a snapshot.
type WarningKind string

const (
	WarningMalformedRule   WarningKind = "MalformedRule"
	WarningDanglingRoleRef WarningKind = "DanglingRoleRef"
	WarningInvalidSubject  WarningKind = "InvalidSubject"
	WarningInvalidRoleRef  WarningKind = "InvalidRoleRef"
)

// Warning records a recovered problem in the input data. Live-cluster RBAC
// is unpredictable, so the engine degrades to warnings instead of failing.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Object  string      `json:"object"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Object, w.Message)
}
