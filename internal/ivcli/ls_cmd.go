package ivcli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgview/internal/core/decode"
	"imgview/internal/core/folder"
	"imgview/internal/core/order"
	"imgview/internal/model"
)

func newLsCommand() *cobra.Command {
	var dims bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the images of a folder in viewing order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			ex := newCollector(opts)
			ord := opts.Config.Order()
			prober := decode.NewProber(0)
			p := folder.New(folder.Options{
				Walk:           opts.walk(),
				Prober:         prober,
				Catalog:        opts.Config.UseCatalog,
				CatalogBackend: opts.Config.CatalogStore,
				CatalogPath:    opts.DBPath,
				Workers:        opts.Config.Workers,
				Logger:         opts.Logger,
			})

			stop := ex.Timer("list")
			space, _, err := p.Load(cmd.Context(), path, ord)
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for i, f := range space.Files() {
				e := model.Entry{Index: i, Path: f.Path, Size: f.Size, ModTime: f.ModTime.Unix()}
				if dims || ord == order.Pixels {
					if w, h, ok := prober.Dimensions(f.Path); ok {
						e.Width, e.Height = w, h
					}
				}
				if opts.Jsonl {
					if err := enc.Encode(e); err != nil {
						return err
					}
					continue
				}
				_, _ = fmt.Fprintln(out, renderEntry(e, space.Root()))
			}

			if ex != nil {
				ex.KV("root", filepath.ToSlash(space.Root()))
				ex.KV("files", space.Len())
				ex.KV("order", ord.String())
				ex.KV("probed", prober.Len())
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dims, "dims", "D", false, "show pixel dimensions")
	return cmd
}
