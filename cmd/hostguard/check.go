package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simman/hostguard/internal/hostfilter"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check host...",
		Short: "Test Host header values against the allow-list",
		Long: `Test Host header values against allowed_hosts from the config file, or
against --allow patterns when given. Prints one line per host and exits
non-zero if any host is rejected.

  hostguard check --allow .example.org sub.example.org example.net`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheck,
	}
	cmd.Flags().StringArray("allow", nil, "Allowed host pattern, overrides the config file (repeatable)")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	allowed, _ := cmd.Flags().GetStringArray("allow")

	if !cmd.Flags().Changed("allow") {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		allowed = cfg.AllowedHosts
	}

	filter := hostfilter.New(allowed, nil)

	out := cmd.OutOrStdout()
	rejected := 0
	for _, host := range args {
		if filter.Allowed(host) {
			fmt.Fprintf(out, "allowed   %s\n", host)
			continue
		}
		rejected++
		fmt.Fprintf(out, "rejected  %s\n", host)
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d hosts rejected", rejected, len(args))
	}
	return nil
}
