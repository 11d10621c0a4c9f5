package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubeconsole/rbaclens/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved analysis reports",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a saved report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the history database (default is $HOME/.rbaclens/history.db)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of reports to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := store.Open(historyPath())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer s.Close()

	reports, err := s.ListReports(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if viper.GetString("output") == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Println("No saved reports.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Created", "Source", "Critical", "High", "Medium", "Low", "Orphaned", "Unused"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range reports {
		table.Append([]string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Source,
			strconv.Itoa(r.Summary.CriticalRisk),
			strconv.Itoa(r.Summary.HighRisk),
			strconv.Itoa(r.Summary.MediumRisk),
			strconv.Itoa(r.Summary.LowRisk),
			strconv.Itoa(r.Summary.OrphanedRoles),
			strconv.Itoa(r.Summary.UnusedAccounts),
		})
	}
	table.Render()
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid report id %q", args[0])
	}

	s, err := store.Open(historyPath())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer s.Close()

	analysis, err := s.GetReport(id)
	if err != nil {
		return fmt.Errorf("failed to load report %d: %w", id, err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(analysis)
}
