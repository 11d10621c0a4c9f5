package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubeconsole/rbaclens/pkg/graph"
)

var graphOutputFile string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the binding graph in Graphviz DOT format",
	Long: `Render subjects, bindings and roles as a directed graph. Namespaced
objects are grouped into subgraph clusters. Pipe the output through dot
to produce an image:

  rbaclens graph -f manifests.yaml | dot -Tpng -o rbac.png`,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Path to a single manifest file")
	graphCmd.Flags().StringVarP(&analyzeDirectory, "dir", "d", "", "Path to a directory containing manifests")
	graphCmd.Flags().BoolVarP(&analyzeCluster, "cluster", "c", false, "Graph live cluster RBAC")
	graphCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	graphCmd.Flags().StringVar(&kubectx, "context", "", "Kubernetes context to use")
	graphCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Restrict cluster queries to one namespace")
	graphCmd.Flags().StringVar(&graphOutputFile, "out", "", "Write DOT output to a file instead of stdout")
}

func runGraph(cmd *cobra.Command, args []string) error {
	snap, _, err := loadSnapshot(cmd.Context(), analyzeFile, analyzeDirectory, analyzeCluster)
	if err != nil {
		return err
	}

	g := graph.Build(snap)
	for _, warning := range g.Warnings() {
		log.Warn(warning.String())
	}

	out := g.DOT().String()
	if graphOutputFile == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(graphOutputFile, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	log.Infof("wrote graph to %s", graphOutputFile)
	return nil
}
