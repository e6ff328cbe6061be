package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"greenlist/internal/linkguard"
	"greenlist/internal/linkguard/liveness"
	"greenlist/internal/linkguard/policy"
)

type assumeLive struct{}

func (assumeLive) IsLive(context.Context, string) bool { return true }

func newSanitizeCmd() *cobra.Command {
	var policyPath string
	var trace bool
	var noProbe bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Sanitize the links in text read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := policy.FromFile(policyPath)
			if err != nil {
				return err
			}
			input, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			var checker linkguard.LivenessChecker = assumeLive{}
			if !noProbe {
				checker = liveness.New(pol,
					liveness.WithClient(liveness.NewClient(liveness.DefaultMaxRedirects)),
					liveness.WithTimeout(timeout),
				)
			}
			out, decisions := linkguard.New(pol, checker, linkguard.WithService("cli")).
				SanitizeWithTrace(cmd.Context(), string(input))

			if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if trace {
				enc := json.NewEncoder(cmd.ErrOrStderr())
				enc.SetIndent("", "  ")
				if decisions == nil {
					decisions = []linkguard.Decision{}
				}
				return enc.Encode(decisions)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "Policy YAML file (default: embedded tables)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Write link decisions to stderr as JSON")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Treat every URL as live instead of probing")
	cmd.Flags().DurationVar(&timeout, "timeout", liveness.DefaultTimeout, "Per-request liveness timeout")

	return cmd
}
