package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/config"
)

// loadConfig merges the YAML file (if any), CDBTILES_* environment variables
// and command flags. Flags take precedence over the environment, which takes
// precedence over the file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path := getConfigString(cmd, "config", "CDBTILES_CONFIG", ""); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	cfg.Roots = getConfigStrings(cmd, "root", "CDBTILES_ROOTS", cfg.Roots)
	if paths := getConfigStrings(cmd, "source", "CDBTILES_SOURCES", nil); paths != nil {
		cfg.Sources = cfg.Sources[:0]
		for _, p := range paths {
			cfg.Sources = append(cfg.Sources, parseSource(p))
		}
	}
	cfg.CacheSizeMB = getConfigInt(cmd, "cache-size", "CDBTILES_CACHE_SIZE_MB", cfg.CacheSizeMB)
	cfg.Strategy = getConfigString(cmd, "strategy", "CDBTILES_STRATEGY", cfg.Strategy)
	cfg.Force = getConfigBool(cmd, "force", "CDBTILES_FORCE", cfg.Force)
	cfg.KeepOpen = getConfigBool(cmd, "keep-open", "CDBTILES_KEEP_OPEN", cfg.KeepOpen)
	cfg.Concurrency = getConfigInt(cmd, "concurrency", "CDBTILES_CONCURRENCY", cfg.Concurrency)
	cfg.Format = getConfigString(cmd, "format", "CDBTILES_FORMAT", cfg.Format)
	cfg.ReferenceEPSG = getConfigInt(cmd, "reference-epsg", "CDBTILES_REFERENCE_EPSG", cfg.ReferenceEPSG)
	cfg.Verbose = getConfigBool(cmd, "verbose", "CDBTILES_VERBOSE", cfg.Verbose)

	return cfg, cfg.Validate()
}

// parseSource splits "path@priority". A suffix that is not an integer is
// part of the path.
func parseSource(s string) config.Source {
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		if n, err := strconv.Atoi(s[i+1:]); err == nil {
			return config.Source{Path: s[:i], Priority: n}
		}
	}
	return config.Source{Path: s}
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigStrings gets a list from flag, then a comma separated env, then default
func getConfigStrings(cmd *cobra.Command, flagName, envName string, defaultValue []string) []string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetStringSlice(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return strings.Split(v, ",")
	}
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// getConfigBool gets a bool value from flag, then env, then default
func getConfigBool(cmd *cobra.Command, flagName, envName string, defaultValue bool) bool {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetBool(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
