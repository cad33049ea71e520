// Package cli implements the register command line.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/register/internal/service"
)

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "register",
		Short:         "Register accounts from a CSV of prospective users",
		Long:          "register validates prospective users from a CSV file, assigns account numbers to the accepted ones and writes them to a CSV export.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// ReportError writes err followed by its coded user message to w.
func ReportError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", err)
	if msg := service.FormatUserError(err); msg != "" {
		fmt.Fprintln(w, msg)
	}
}
