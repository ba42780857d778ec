// Package main provides correlatectl, a demo driver for the correlation
// engine: it reads newline-delimited JSON log lines from stdin, feeds
// them through a configured Correlator, and prints every synthetic
// summary message to stdout as it is emitted.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger = defaultLogger()

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

var rootCmd = &cobra.Command{
	Use:   "correlatectl",
	Short: "Drive the log-correlation engine from the command line",
	Long:  "correlatectl wires a correlation engine from a YAML config file and runs it over a stream of JSON log lines.",
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
