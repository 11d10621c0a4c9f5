package main

import (
	"fmt"
	"os"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubeconsole/rbaclens/internal/logging"
)

var (
	cfgFile string
	log     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rbaclens",
	Short: "A Kubernetes RBAC security-analysis tool",
	Long: `Rbaclens analyzes a cluster's Roles, ClusterRoles, bindings and service
accounts into an effective-permission report: risk level per service account,
orphaned roles, and unused service accounts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(os.Stderr, viper.GetBool("verbose"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rbaclens.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format (text, json, sarif)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rbaclens")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold,
		Commands: cc.HiYellow + cc.Bold,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
