package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PGM_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// schemaArg returns the schema path from the arguments or the config file
func schemaArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if schema := GetConfigString("schema", ""); schema != "" {
		return schema, nil
	}
	return "", fmt.Errorf("%w: schema path is required", util.ErrMissingArgument)
}

// connectionOptions builds store options from flags, environment and config,
// prompting for the password when asked to
func connectionOptions(prompt func(string) (string, error)) (store.Options, error) {
	opts := store.Options{
		Connection:  GetConfigString("connection", ""),
		User:        GetConfigString("user", ""),
		Password:    GetConfigString("password", ""),
		ToolVersion: Version,
	}
	if opts.Connection == "" {
		return opts, fmt.Errorf("%w: --connection is required", util.ErrMissingArgument)
	}

	if GetConfigBool("prompt-password") && opts.Password == "" {
		password, err := prompt("Password: ")
		if err != nil {
			return opts, err
		}
		opts.Password = password
	}

	return opts, nil
}

// openStore connects to the configured database
func openStore(ctx context.Context) (*store.Store, error) {
	opts, err := connectionOptions(util.PromptPassword)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
