package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/remoterecord/internal/cli/ui"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/collection"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/store"
)

type syncOptions struct {
	where       []string
	fields      []string
	remoteIDKey string
	metrics     bool
}

func newSyncCommand(opts *globalOptions) *cobra.Command {
	so := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync <handler>",
		Short: "Reconcile local records with the remote collection",
		Long: `Retrieve the remote collection in one call and match it against local
records by remote id. Remote records with no local counterpart are created
locally. With --where, only the matching remote records are retrieved and
local records are looked up by their remote ids.`,
		Example: `  remoterecord sync Todo
  remoterecord sync Todo --where userId=1 --field title
  remoterecord sync Todo --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&so.where, "where", "w", nil, "Filter remote records (key=value, repeatable)")
	cmd.Flags().StringSliceVarP(&so.fields, "field", "f", nil, "Attributes to print for each record")
	cmd.Flags().StringVar(&so.remoteIDKey, "remote-id-key", collection.DefaultRemoteIDKey, "Payload key holding the remote id")
	cmd.Flags().BoolVar(&so.metrics, "metrics", false, "Print reconciliation counters afterwards")

	return cmd
}

func runSync(cmd *cobra.Command, opts *globalOptions, so *syncOptions, name string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	params, err := parseWhere(so.where)
	if err != nil {
		return err
	}

	typ, err := a.declare(name)
	if err != nil {
		return err
	}
	s, err := a.store(ctx, typ)
	if err != nil {
		return err
	}

	var local []reference.Entity
	if params == nil {
		records, err := s.All(ctx)
		if err != nil {
			return err
		}
		local = store.Entities(records)
	}

	col := collection.New(typ, local,
		collection.WithIndex(s),
		collection.WithCreator(s),
		collection.WithRemoteIDKey(so.remoteIDKey))

	var refs []*reference.Reference
	if params == nil {
		refs, err = col.All(ctx)
	} else {
		refs, err = col.Where(ctx, params)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderSync(out, a.noColor, col.Result(), refs, so.fields, typ.IDField())
	if so.metrics {
		fmt.Fprintln(out)
		return renderMetrics(out, a.noColor, a.gatherer)
	}
	return nil
}

// parseWhere turns key=value flags into Find params; nil means no filter
func parseWhere(pairs []string) (handler.Payload, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := handler.Payload{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --where %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func renderSync(w io.Writer, noColor bool, res collection.Result, refs []*reference.Reference, fields []string, idField string) {
	created := make(map[string]bool, len(res.UnmatchedRemote))
	for _, r := range res.UnmatchedRemote {
		created[r.RemoteID] = true
	}

	headers := append([]string{"REMOTE ID", "STATUS"}, upper(fields)...)
	table := ui.NewTable(w, noColor, headers...)
	for _, ref := range refs {
		status := "matched"
		if created[ref.RemoteID()] {
			status = "created"
		}
		row := []string{ref.RemoteID(), ui.Status(status, noColor)}
		attrs := ref.Attrs()
		for _, f := range fields {
			v, ok := attrs[f]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprint(v))
		}
		table.AddRow(row...)
	}
	for _, e := range res.UnmatchedLocal {
		id, _ := e.FieldValue(idField)
		table.AddRow(id, ui.Status("unmatched", noColor))
	}
	table.Render()

	fmt.Fprintf(w, "\n%d matched, %d created, %d unmatched local, %d skipped\n",
		len(res.Matched), len(res.UnmatchedRemote), len(res.UnmatchedLocal), len(res.Skipped))
}

// renderMetrics prints every non-zero counter in the registry
func renderMetrics(w io.Writer, noColor bool, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	table := ui.NewTable(w, noColor, "METRIC", "LABELS", "VALUE")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)
			table.AddRow(mf.GetName(), strings.Join(labels, ","), fmt.Sprint(value))
		}
	}
	table.Render()
	return nil
}

func upper(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}
