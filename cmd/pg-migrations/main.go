package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "pg-migrations <schema>",
		Short: "Apply SQL changeset files to a database",
		Long: `pg-migrations applies changesets from SQL files to a database and records
what ran in a changelog, so that every run only applies what is new.

<schema> is either a directory (all **/*.sql files are loaded) or a manifest
file (.yml, .yaml or .json) listing glob patterns relative to its directory.

Each file starts with a --migration header and holds one or more changesets:

  --migration
  --changeset create users type:once
  create table users(id int);

Execution types: once (default, must not change), always, change (runs again
whenever its content changes). Use --generate-script to print the SQL that
would run without applying it.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runMigrate,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pg-migrations.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().StringP("connection", "c", "", "database connection (postgres://, mysql:// or a sqlite path)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "database user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "database password")
	rootCmd.PersistentFlags().BoolP("prompt-password", "P", false, "prompt for the database password")
	rootCmd.PersistentFlags().String("context", "", "comma separated contexts to run (default runs all)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("connection", rootCmd.PersistentFlags().Lookup("connection"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("prompt-password", rootCmd.PersistentFlags().Lookup("prompt-password"))
	viper.BindPFlag("context", rootCmd.PersistentFlags().Lookup("context"))

	// Migrate flags
	rootCmd.Flags().BoolP("generate-script", "s", false, "print the SQL that would run instead of applying it")
	rootCmd.Flags().String("event-log", "", "directory for a JSONL event log of the run")
	rootCmd.Flags().String("report", "", "write a markdown summary of the run to this file")

	viper.BindPFlag("generate-script", rootCmd.Flags().Lookup("generate-script"))
	viper.BindPFlag("event-log", rootCmd.Flags().Lookup("event-log"))
	viper.BindPFlag("report", rootCmd.Flags().Lookup("report"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("pg-migrations")
		viper.SetConfigType("yaml")
	}

	// PGM_CONNECTION, PGM_PASSWORD, PGM_PROMPT_PASSWORD, ...
	viper.SetEnvPrefix("PGM")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	if err := viper.ReadInConfig(); err == nil {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
