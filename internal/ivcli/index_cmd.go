package ivcli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgview/internal/catalog"
	"imgview/internal/catalog/backend"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Catalog management",
	}

	cmd.AddCommand(newIndexBuildCommand())
	cmd.AddCommand(newIndexStatusCommand())
	return cmd
}

func newIndexBuildCommand() *cobra.Command {
	var hash bool
	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Build (or refresh) the folder's image catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			root, err := rootArg(args)
			if err != nil {
				return err
			}

			ex := newCollector(opts)
			stats, err := catalog.Build(cmd.Context(), root, catalog.BuildOptions{
				Backend: opts.Config.CatalogStore,
				DBPath:  opts.DBPath,
				Walk:    opts.walk(),
				Workers: opts.Config.Workers,
				Hash:    hash,
				Explain: ex,
				Logger:  opts.Logger,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d updated=%d unchanged=%d removed=%d failed=%d version=%d\n",
				stats.Scanned, stats.Updated, stats.Unchanged, stats.Removed, stats.Failed, stats.Version)
			if ex != nil {
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hash, "hash", true, "fingerprint file contents")
	return cmd
}

func newIndexStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "Show what the catalog holds for a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			root, err := rootArg(args)
			if err != nil {
				return err
			}

			s, err := catalog.Open(root, opts.Config.CatalogStore, opts.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			id := catalog.FolderID(root)
			f, err := s.GetFolder(id)
			if err != nil {
				return fmt.Errorf("%s: %w", root, err)
			}
			n, err := s.CountRecords(id)
			if err != nil {
				return err
			}
			path := backend.NormalizePath(opts.Config.CatalogStore, opts.DBPath)
			if path == "" {
				path = backend.DefaultPath(root, opts.Config.CatalogStore)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "folder=%s backend=%s path=%s records=%d version=%d\n",
				f.Root, s.Backend(), path, n, f.Version)
			return nil
		},
	}
}

func rootArg(args []string) (string, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	return filepath.Abs(root)
}
