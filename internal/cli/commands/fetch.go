package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/remoterecord/internal/cli/ui"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/store"
)

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "fetch <handler> <remote-id>",
		Short: "Fetch one remote record and print its attributes",
		Long: `Fetch the remote record a local record points at. When no local record
holds the remote id, the record is fetched without being stored.`,
		Example: `  remoterecord fetch Todo 1
  remoterecord fetch Todo 1 --field title --field completed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			typ, err := a.declare(args[0])
			if err != nil {
				return err
			}
			s, err := a.store(ctx, typ)
			if err != nil {
				return err
			}

			var entity reference.Entity
			rec, err := s.Get(ctx, args[1])
			switch {
			case err == nil:
				entity = rec
			case store.IsNotFound(err):
				entity = s.Build(args[1])
			default:
				return err
			}

			ref, err := typ.New(ctx, entity)
			if err != nil {
				return err
			}

			out := ui.NewFields(cmd.OutOrStdout(), a.noColor)
			if len(fields) > 0 {
				for _, f := range fields {
					v, err := ref.Get(ctx, f)
					if err != nil {
						return err
					}
					out.Add(f, fmt.Sprint(v))
				}
				out.Render()
				return nil
			}

			if err := ref.Fetch(ctx); err != nil {
				return err
			}
			attrs := ref.Attrs()
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out.Add(k, fmt.Sprint(attrs[k]))
			}
			out.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "Print only these attributes")
	return cmd
}
