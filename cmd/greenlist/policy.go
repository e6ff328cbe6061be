package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenlist/internal/linkguard/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect link policy tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a policy file, or the embedded tables when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			pol, err := policy.FromFile(path)
			if err != nil {
				return err
			}
			s := pol.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"policy ok: approved=%d whitelist=%d fallbacks=%d skip_liveness=%d rewrites=%d\n",
				s.Approved, s.Whitelist, s.Fallbacks, s.SkipLiveness, s.Rewrites)
			return err
		},
	})
	return cmd
}
