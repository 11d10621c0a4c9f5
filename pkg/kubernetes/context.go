package kubernetes

import (
	"sort"

	"k8s.io/client-go/tools/clientcmd"
)

// GetAvailableContexts returns the sorted context names in the kubeconfig
// file and the name of the current context.
func GetAvailableContexts(kubeconfig string) ([]string, string, error) {
	configAccess := clientcmd.NewDefaultPathOptions()
	if kubeconfig != "" {
		configAccess.GlobalFile = kubeconfig
	}
	config, err := configAccess.GetStartingConfig()
	if err != nil {
		return nil, "", err
	}
	contexts := make([]string, 0, len(config.Contexts))
	for name := range config.Contexts {
		contexts = append(contexts, name)
	}
	sort.Strings(contexts)
	return contexts, config.CurrentContext, nil
}
