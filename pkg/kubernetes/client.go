// Package kubernetes wraps client-go to collect the engine's input
// collections from a live cluster.
package kubernetes

import (
	"context"
	"fmt"
	"path/filepath"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// SnapshotReader fetches a complete input snapshot for a scope. Implemented
// by Client; tests substitute a fake.
type SnapshotReader interface {
	FetchSnapshot(ctx context.Context, namespace string) (*rbac.Snapshot, error)
}

// Client provides methods to fetch RBAC resources and ServiceAccounts from
// a Kubernetes cluster.
type Client struct {
	clientset kubernetes.Interface
}

var _ SnapshotReader = (*Client)(nil)

// NewClient creates a new Kubernetes client. With an empty kubeconfig path
// it tries in-cluster config first, then the default kubeconfig location.
// A non-empty kubeContext overrides the kubeconfig's current context.
func NewClient(kubeconfig, kubeContext string) (*Client, error) {
	config, err := getConfig(kubeconfig, kubeContext)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

// NewClientFromConfig creates a new Kubernetes client from rest.Config.
func NewClientFromConfig(config *rest.Config) (*Client, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

// NewClientFromClientset wraps an existing clientset. Used by tests with
// the fake clientset.
func NewClientFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// GetClientset returns the underlying Kubernetes clientset.
func (c *Client) GetClientset() kubernetes.Interface {
	return c.clientset
}

// getConfig returns a kubernetes config.
func getConfig(kubeconfig, kubeContext string) (*rest.Config, error) {
	if kubeconfig == "" && kubeContext == "" {
		config, err := rest.InClusterConfig()
		if err == nil {
			return config, nil
		}
	}
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

// FetchSnapshot lists the five input collections for the scope (a single
// namespace, or the whole cluster when namespace is empty) and joins them
// into one snapshot. Analysis needs all five from the same point in time;
// a partial set would misreport orphans and unused accounts, so any list
// failure fails the whole fetch.
func (c *Client) FetchSnapshot(ctx context.Context, namespace string) (*rbac.Snapshot, error) {
	snap := &rbac.Snapshot{}

	roleList, err := c.clientset.RbacV1().Roles(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	snap.Roles = roleList.Items

	clusterRoleList, err := c.clientset.RbacV1().ClusterRoles().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cluster roles: %w", err)
	}
	snap.ClusterRoles = clusterRoleList.Items

	roleBindingList, err := c.clientset.RbacV1().RoleBindings(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role bindings: %w", err)
	}
	snap.RoleBindings = roleBindingList.Items

	clusterRoleBindingList, err := c.clientset.RbacV1().ClusterRoleBindings().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cluster role bindings: %w", err)
	}
	snap.ClusterRoleBindings = clusterRoleBindingList.Items

	saList, err := c.clientset.CoreV1().ServiceAccounts(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service accounts: %w", err)
	}
	snap.ServiceAccounts = saList.Items

	return snap, nil
}
