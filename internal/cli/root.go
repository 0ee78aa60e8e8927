// Package cli implements the aetherwatch command surface: live status
// monitoring, job management, finding summaries, and job submission
// against an AetherFrame analysis service.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/reveris/aetherwatch/pkg/client"
	"github.com/reveris/aetherwatch/pkg/config"
)

var (
	cfgFile string
	apiBase string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aetherwatch",
	Short: "Operator console for the AetherFrame analysis service",
	Long: `aetherwatch keeps an operator view of a running AetherFrame instance:
live system status, job progress, and chart-ready finding summaries,
all computed client-side from the service's REST collections.

The views refresh themselves. Every live command polls on an interval
and applies only the newest response, so a slow cycle can never roll
the display back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aetherwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "", "analysis service base URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

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
		viper.SetConfigName(".aetherwatch")
	}

	viper.SetEnvPrefix("AETHERWATCH")
	viper.AutomaticEnv()

	if apiBase != "" {
		viper.Set("api_base_url", apiBase)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func newLogger(cfg *config.Config) *zap.Logger {
	if cfg.Verbose || verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.APIBaseURL, client.WithTimeout(cfg.RequestTimeout))
}
