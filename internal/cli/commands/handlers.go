package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/remoterecord/internal/cli/ui"
)

func newHandlersCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List the handlers declared in the project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			table := ui.NewTable(cmd.OutOrStdout(), a.noColor, "HANDLER", "URL", "LIST ALL", "FIND", "MEMOIZE", "ID FIELD")
			for _, name := range a.registry.Names() {
				typ, err := a.declare(name)
				if err != nil {
					return err
				}
				h, _ := a.cfg.Handler(name)
				ht := typ.HandlerType()
				table.AddRow(name, h.BaseURL+"/"+h.Path,
					yesNo(ht.SupportsListAll()), yesNo(ht.SupportsFind()),
					yesNo(typ.Config().Memoize()), typ.IDField())
			}
			if table.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No handlers declared.")
				return nil
			}
			table.Render()
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
