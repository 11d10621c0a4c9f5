package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubeconsole/rbaclens/pkg/graph"
)

var whoCanCmd = &cobra.Command{
	Use:   "who-can VERB RESOURCE [APIGROUP]",
	Short: "List subjects that can perform a verb on a resource",
	Long: `Query the binding graph for every subject granted VERB on RESOURCE.
APIGROUP defaults to the core API group; wildcard grants match any query.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runWhoCan,
}

func init() {
	rootCmd.AddCommand(whoCanCmd)

	whoCanCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Path to a single manifest file")
	whoCanCmd.Flags().StringVarP(&analyzeDirectory, "dir", "d", "", "Path to a directory containing manifests")
	whoCanCmd.Flags().BoolVarP(&analyzeCluster, "cluster", "c", false, "Query live cluster RBAC")
	whoCanCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	whoCanCmd.Flags().StringVar(&kubectx, "context", "", "Kubernetes context to use")
	whoCanCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Restrict cluster queries to one namespace")
}

func runWhoCan(cmd *cobra.Command, args []string) error {
	verb := args[0]
	resource := args[1]
	apiGroup := ""
	if len(args) == 3 {
		apiGroup = args[2]
	}

	snap, _, err := loadSnapshot(cmd.Context(), analyzeFile, analyzeDirectory, analyzeCluster)
	if err != nil {
		return err
	}

	g := graph.Build(snap)
	for _, warning := range g.Warnings() {
		log.Warn(warning.String())
	}
	matches := g.WhoCan(verb, resource, apiGroup)

	if viper.GetString("output") == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Printf("No subject can %s %s\n", verb, resource)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tKIND\tNAMESPACE\tROLE\tBINDING")
	for _, match := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			match.Subject.Name,
			match.Subject.Kind,
			orDash(match.Subject.Namespace),
			match.Grant.Role.Name,
			match.Grant.Binding.Name,
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
