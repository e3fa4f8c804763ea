// Package ivcli implements the iv command line: listing, catalog builds,
// an interactive browser and a scroll benchmark.
package ivcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgview/internal/version"
)

func NewRootCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:           "iv",
		Short:         "Image folder viewer core: list, index, browse and benchmark",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()
	cmd.InitDefaultVersionFlag()
	if f := cmd.Flags().Lookup("version"); f != nil {
		f.Shorthand = "v"
	}

	withOptionsContext(cmd, opts)
	bindFlags(cmd, opts)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		if opts == nil {
			return fmt.Errorf("options missing")
		}
		return opts.Prepare(cmd.Flags().Changed)
	}

	cmd.AddCommand(newLsCommand())
	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newBrowseCommand())
	cmd.AddCommand(newBenchCommand())
	return cmd
}

func newCollector(opts *Options) *ExplainCollector {
	if opts == nil || opts.Explain == "" {
		return nil
	}
	return NewExplainCollector(ExplainOptions{Format: opts.Explain})
}
