package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/datadiff/cmd/batch"
	"github.com/cockroachdb/datadiff/cmd/compare"
	"github.com/cockroachdb/datadiff/cmd/internal/cmdutil"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FF0000")).
	Bold(true)

var rootCmd = &cobra.Command{
	Use:   "datadiff",
	Short: "Compare relational data across databases and exports",
	Long: `datadiff validates data migrations by comparing tables and CSV exports row by
row, reporting rows present on only one side and values which differ.

Flags may also be set by DATADIFF_<FLAG> environment variables, with dashes
replaced by underscores, or by a YAML file given with --config.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cmdutil.ApplyConfig(cmd)
	},
}

// Execute runs the command line, printing any error, and returns the
// process exit code.
func Execute() int {
	err := rootCmd.Execute()
	var exitErr *cmdutil.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.Err == nil) {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
	}
	return cmdutil.ExitCode(err)
}

func init() {
	cmdutil.RegisterConfigFlags(rootCmd)
	rootCmd.AddCommand(compare.Command())
	rootCmd.AddCommand(batch.Command())
}
