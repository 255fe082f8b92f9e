package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appVersion = "1.0.0"
	appName    = "hostguard"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Host header allow-list gateway",
		Long: `hostguard - reject requests whose Host header is not on the allow-list,
forward the rest to configured upstreams.

Patterns in allowed_hosts:
  example.com        exact host, any port
  example.com:9000   exact host and port
  .example.com       example.com and all of its subdomains
  *                  any host`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file (default $HOSTGUARD_CONFIG or configs/config.yaml)")

	root.AddCommand(newServeCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
