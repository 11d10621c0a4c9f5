package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubeconsole/rbaclens/pkg/kubernetes"
)

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List contexts available in the kubeconfig",
	RunE:  runContexts,
}

func init() {
	rootCmd.AddCommand(contextsCmd)

	contextsCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
}

func runContexts(cmd *cobra.Command, args []string) error {
	names, current, err := kubernetes.GetAvailableContexts(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to read kubeconfig: %w", err)
	}

	if viper.GetString("output") == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			Contexts []string `json:"contexts"`
			Current  string   `json:"current"`
		}{Contexts: names, Current: current})
	}

	for _, name := range names {
		if name == current {
			color.New(color.FgGreen, color.Bold).Printf("* %s\n", name)
			continue
		}
		fmt.Printf("  %s\n", name)
	}
	return nil
}
