package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/kubeconsole/rbaclens/internal/store"
	"github.com/kubeconsole/rbaclens/pkg/analyzer"
	"github.com/kubeconsole/rbaclens/pkg/classifier"
	"github.com/kubeconsole/rbaclens/pkg/kubernetes"
	"github.com/kubeconsole/rbaclens/pkg/parser"
	"github.com/kubeconsole/rbaclens/pkg/rbac"
	"github.com/kubeconsole/rbaclens/pkg/reporter"
)

var (
	analyzeFile      string
	analyzeDirectory string
	analyzeCluster   bool
	kubeconfig       string
	kubectx          string
	namespace        string
	subjectFilter    string
	riskFilter       string
	saveReport       bool
	dbPath           string
	noColor          bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze RBAC objects into a risk and hygiene report",
	Long: `Analyze Roles, ClusterRoles, RoleBindings, ClusterRoleBindings and
ServiceAccounts from manifests or a live cluster. Produces the effective
permission set and risk level for every service account, and flags orphaned
roles and unused service accounts.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Path to a single manifest file")
	analyzeCmd.Flags().StringVarP(&analyzeDirectory, "dir", "d", "", "Path to a directory containing manifests")
	analyzeCmd.Flags().BoolVarP(&analyzeCluster, "cluster", "c", false, "Analyze live cluster RBAC")
	analyzeCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	analyzeCmd.Flags().StringVar(&kubectx, "context", "", "Kubernetes context to use")
	analyzeCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Restrict cluster analysis to one namespace")
	analyzeCmd.Flags().StringVarP(&subjectFilter, "subject", "s", "", "Filter by service account name")
	analyzeCmd.Flags().StringVar(&riskFilter, "risk-level", "", "Filter by risk level (low, medium, high, critical)")
	analyzeCmd.Flags().BoolVar(&saveReport, "save", false, "Save the report to the history database")
	analyzeCmd.Flags().StringVar(&dbPath, "db", "", "Path to the history database (default is $HOME/.rbaclens/history.db)")
	analyzeCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	viper.BindPFlag("analyze.file", analyzeCmd.Flags().Lookup("file"))
	viper.BindPFlag("analyze.directory", analyzeCmd.Flags().Lookup("dir"))
	viper.BindPFlag("analyze.cluster", analyzeCmd.Flags().Lookup("cluster"))
	viper.BindPFlag("analyze.kubeconfig", analyzeCmd.Flags().Lookup("kubeconfig"))
	viper.BindPFlag("analyze.context", analyzeCmd.Flags().Lookup("context"))
	viper.BindPFlag("analyze.namespace", analyzeCmd.Flags().Lookup("namespace"))
	viper.BindPFlag("analyze.subject", analyzeCmd.Flags().Lookup("subject"))
	viper.BindPFlag("analyze.risk-level", analyzeCmd.Flags().Lookup("risk-level"))
	viper.BindPFlag("analyze.save", analyzeCmd.Flags().Lookup("save"))
	viper.BindPFlag("analyze.db", analyzeCmd.Flags().Lookup("db"))
	viper.BindPFlag("analyze.no-color", analyzeCmd.Flags().Lookup("no-color"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	file := viper.GetString("analyze.file")
	directory := viper.GetString("analyze.directory")
	cluster := viper.GetBool("analyze.cluster")
	outputFormat := viper.GetString("output")

	if viper.GetBool("analyze.no-color") {
		color.NoColor = true
	}

	snap, source, err := loadSnapshot(cmd.Context(), file, directory, cluster)
	if err != nil {
		return err
	}

	analysis, err := analyzer.Analyze(snap)
	if err != nil {
		return fmt.Errorf("failed to analyze snapshot: %w", err)
	}
	for _, warning := range analysis.Warnings {
		log.Warn(warning.String())
	}

	if viper.GetBool("analyze.save") {
		if err := saveToHistory(source, analysis); err != nil {
			return err
		}
	}

	analysis = filterAnalysis(analysis, viper.GetString("analyze.subject"), viper.GetString("analyze.risk-level"))

	r := reporter.New(reporter.Format(outputFormat))
	return r.Report(analysis, os.Stdout)
}

// loadSnapshot builds the engine input from exactly one of the three
// sources, and names the source for report history.
func loadSnapshot(ctx context.Context, file, directory string, cluster bool) (*rbac.Snapshot, string, error) {
	inputCount := 0
	if file != "" {
		inputCount++
	}
	if directory != "" {
		inputCount++
	}
	if cluster {
		inputCount++
	}
	if inputCount == 0 {
		return nil, "", fmt.Errorf("must specify one of --file, --dir, or --cluster")
	}
	if inputCount > 1 {
		return nil, "", fmt.Errorf("cannot specify multiple input sources")
	}

	if cluster {
		client, err := kubernetes.NewClient(kubeconfig, kubectx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		snap, err := fetchClusterSnapshot(ctx, client, namespace)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch cluster snapshot: %w", err)
		}
		source := "cluster"
		if kubectx != "" {
			source = "cluster:" + kubectx
		}
		return snap, source, nil
	}

	var objects []runtime.Object
	var err error
	var source string
	if file != "" {
		objects, err = parser.New().ParseFile(file)
		source = "file:" + file
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse file: %w", err)
		}
	} else {
		objects, err = parseDirectory(directory)
		source = "dir:" + directory
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse directory: %w", err)
		}
	}
	log.Debugf("parsed %d objects from %s", len(objects), source)
	return parser.BuildSnapshot(objects), source, nil
}

// fetchClusterSnapshot reads the full input from any snapshot source.
func fetchClusterSnapshot(ctx context.Context, reader kubernetes.SnapshotReader, namespace string) (*rbac.Snapshot, error) {
	log.Debugf("fetching snapshot from cluster (namespace=%q)", namespace)
	return reader.FetchSnapshot(ctx, namespace)
}

// parseDirectory walks the directory and parses every YAML file. Files that
// fail to parse are skipped with a warning.
func parseDirectory(directory string) ([]runtime.Object, error) {
	var allObjects []runtime.Object
	p := parser.New()
	failedParses := 0

	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml") {
			objects, parseErr := p.ParseFile(path)
			if parseErr != nil {
				log.Warnf("failed to parse %s: %v", path, parseErr)
				failedParses++
				return nil
			}
			allObjects = append(allObjects, objects...)
		}
		return nil
	})

	if failedParses > 0 {
		fmt.Fprintf(os.Stderr, "%d file(s) failed to parse in directory %q\n", failedParses, directory)
	}

	return allObjects, err
}

// filterAnalysis narrows the account list by name and risk level. The
// orphan/unused findings are left intact; they describe the snapshot, not
// individual accounts.
func filterAnalysis(a *analyzer.RBACAnalysis, name, risk string) *analyzer.RBACAnalysis {
	if name == "" && risk == "" {
		return a
	}

	filtered := *a
	filtered.PrivilegedServiceAccounts = nil
	for _, account := range a.PrivilegedServiceAccounts {
		if name != "" && account.Name != name {
			continue
		}
		if risk != "" && account.RiskLevel != classifier.RiskLevel(risk) {
			continue
		}
		filtered.PrivilegedServiceAccounts = append(filtered.PrivilegedServiceAccounts, account)
	}
	return &filtered
}

func saveToHistory(source string, analysis *analyzer.RBACAnalysis) error {
	s, err := store.Open(historyPath())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer s.Close()

	id, err := s.SaveReport(source, analysis)
	if err != nil {
		return err
	}
	log.Debugf("saved report %d", id)
	return nil
}

func historyPath() string {
	if dbPath != "" {
		return dbPath
	}
	if path := viper.GetString("analyze.db"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "rbaclens-history.db"
	}
	return filepath.Join(home, ".rbaclens", "history.db")
}
