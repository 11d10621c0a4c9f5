// Package parser decodes Kubernetes manifests into the typed objects the
// analysis engine consumes: RBAC objects and ServiceAccounts.
package parser

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"

	"github.com/kubeconsole/rbaclens/pkg/rbac"
)

// Parser handles parsing of Kubernetes YAML manifests.
type Parser struct {
	decoder runtime.Decoder
}

// New creates a new Parser instance.
func New() *Parser {
	scheme := runtime.NewScheme()
	_ = rbacv1.AddToScheme(scheme)
	_ = corev1.AddToScheme(scheme)

	codecFactory := serializer.NewCodecFactory(scheme)

	return &Parser{
		decoder: codecFactory.UniversalDeserializer(),
	}
}

// ParseFile parses a single manifest file.
func (p *Parser) ParseFile(filename string) ([]runtime.Object, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses multi-document YAML from a reader, keeping only the kinds
// the engine understands. Documents of other kinds are skipped, not errors:
// manifests routinely mix RBAC with unrelated resources.
func (p *Parser) Parse(reader io.Reader) ([]runtime.Object, error) {
	var objects []runtime.Object

	decoder := yaml.NewDecoder(reader)
	for {
		var doc interface{}
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}

		// Skip empty documents
		if doc == nil {
			continue
		}

		// Convert back to YAML bytes for the k8s decoder
		yamlBytes, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}

		obj, gvk, err := p.decoder.Decode(yamlBytes, nil, nil)
		if err != nil {
			// Not a kind the scheme knows
			continue
		}

		switch {
		case gvk.Group == rbacv1.GroupName:
			objects = append(objects, obj)
		case gvk.Group == "" && gvk.Kind == "ServiceAccount":
			objects = append(objects, obj)
		}
	}

	return objects, nil
}

// BuildSnapshot sorts parsed objects into the engine's input snapshot.
func BuildSnapshot(objects []runtime.Object) *rbac.Snapshot {
	snap := &rbac.Snapshot{}

	for _, obj := range objects {
		switch v := obj.(type) {
		case *rbacv1.Role:
			snap.Roles = append(snap.Roles, *v)
		case *rbacv1.ClusterRole:
			snap.ClusterRoles = append(snap.ClusterRoles, *v)
		case *rbacv1.RoleBinding:
			snap.RoleBindings = append(snap.RoleBindings, *v)
		case *rbacv1.ClusterRoleBinding:
			snap.ClusterRoleBindings = append(snap.ClusterRoleBindings, *v)
		case *corev1.ServiceAccount:
			snap.ServiceAccounts = append(snap.ServiceAccounts, *v)
		}
	}

	return snap
}

// GetObjectKind returns the kind of the runtime object.
func GetObjectKind(obj runtime.Object) string {
	switch obj.(type) {
	case *rbacv1.Role:
		return "Role"
	case *rbacv1.RoleBinding:
		return "RoleBinding"
	case *rbacv1.ClusterRole:
		return "ClusterRole"
	case *rbacv1.ClusterRoleBinding:
		return "ClusterRoleBinding"
	case *corev1.ServiceAccount:
		return "ServiceAccount"
	default:
		return "Unknown"
	}
}
