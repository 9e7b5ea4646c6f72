// Command monarch is the external collaborator CLI around the engine's
// public Go API (spec.md §1 "command-line front end"). It speaks only
// through monarch.Database and internal/adapter, the same contracts any
// other embedder would use.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/monarch/internal/config"
	"github.com/cuemby/monarch/internal/monlog"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// exitError carries the process exit code spec.md §6 assigns to each
// failure class (1 usage/validation, 2 I/O, 3 internal).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, args ...any) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

func ioErr(err error) error {
	return &exitError{code: 2, err: err}
}

func internalErr(err error) error {
	return &exitError{code: 3, err: err}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		code := 3
		if errors.As(err, &ee) {
			code = ee.code
			err = ee.err
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(code)
	}
}

var rootCmd = &cobra.Command{
	Use:     "monarch",
	Short:   "Monarch - embedded multi-model storage engine",
	Long:    "Monarch is an embedded, multi-model database: document collections with secondary indexes, Redis-style containers, a vector store, a property graph and a full-text index, atop a write-ahead log.",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("path", "./data", "Data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(batchInsertCmd)
}

// cmdLogger builds this invocation's logger. The engine never holds a
// process-global logger (spec.md §9 "Global state"); the CLI is the one
// place that constructs one and threads it explicitly into monarch.Open.
func cmdLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	jsonOut, _ := cmd.Flags().GetBool("log-json")
	return monlog.New(monlog.Config{Level: monlog.Level(level), JSONOutput: jsonOut})
}

func dataPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		return config.Defaults().DataDir
	}
	return path
}
