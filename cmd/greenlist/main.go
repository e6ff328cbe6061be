package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "greenlist",
		Short:        "Greenlist link guard tools",
		SilenceUsage: true,
	}

	root.AddCommand(newSanitizeCmd())
	root.AddCommand(newLoadCmd())
	root.AddCommand(newPolicyCmd())

	return root
}
