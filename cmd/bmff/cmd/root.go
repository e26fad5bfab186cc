// Package cmd implements the bmff command line.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ugparu/bmff/utils/logger"
)

const name = "BMFF_CLI"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bmff",
	Short: "ISO base media file toolkit",
	Long: `bmff reads and writes ISO base media files (MP4, fragmented MP4, CMAF)
and converts FLV streams into fragmented MP4.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logger.InitString(viper.GetString("log.level"))
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		logger.Flush()
	},
}

// Execute runs the command selected by the process arguments.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warning, error)")
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads the config file, if any, and BMFF_ environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}
	viper.SetEnvPrefix("BMFF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
