// Command reportctl drives the report assistant from the shell: it manages the
// section similarity index and runs the report workflow without the HTTP API.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Operate the report assistant (section index, report generation)",
	Long: `reportctl shares its configuration with the API: environment variables,
.env files, and an optional reportctl.yaml. Flags and REPORTCTL_* variables
override the index path and public base URL.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./reportctl.yaml or ~/.config/reportctl/config.yaml)")
	rootCmd.PersistentFlags().String("index-db", "", "similarity index SQLite path (overrides INDEX_DB_PATH)")
	rootCmd.PersistentFlags().String("base-url", "", "public base URL for download links (overrides PUBLIC_BASE_URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log component setup to stderr")

	_ = viper.BindPFlag("index_db", rootCmd.PersistentFlags().Lookup("index-db"))
	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("reportctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "reportctl"))
		}
	}

	viper.SetEnvPrefix("REPORTCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the shared environment configuration and applies the
// reportctl overrides.
func loadConfig() config.Config {
	_ = config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()
	if path := viper.GetString("index_db"); path != "" {
		cfg.IndexDBPath = path
	}
	if base := viper.GetString("base_url"); base != "" {
		cfg.PublicBaseURL = base
	}
	return cfg
}

func newLogger() *log.Logger {
	var out io.Writer = io.Discard
	if viper.GetBool("verbose") {
		out = os.Stderr
	}
	return log.New(out, "[reportctl] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
