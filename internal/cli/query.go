package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trashtrim/internal/exitcodes"
	"trashtrim/internal/history"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var errNoQuery = errors.New("one of --recent, --run, --action or --stats is required")

// ExecuteQuery runs trashtrim-query with args and returns the process exit code
func ExecuteQuery(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newQueryCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}
	fmt.Fprintf(stderr, "trashtrim-query: %s\n", err)
	return exitCode(err)
}

type queryFlags struct {
	db     string
	recent int
	run    string
	action string
	limit  int
	stats  bool
	format string
}

func newQueryCmd(stdout io.Writer) *cobra.Command {
	q := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "trashtrim-query",
		Short: "Inspect the trashtrim action history",
		Example: `  trashtrim-query --db history.db --recent 10
  trashtrim-query --db history.db --run 6f1c...
  trashtrim-query --db history.db --action ERROR
  trashtrim-query --db history.db --stats --format yaml`,
		Args:          configArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return q.execute(stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ConfigError{Err: err}
	})

	f := cmd.Flags()
	f.StringVar(&q.db, "db", "", "Path to the history database (required)")
	f.IntVar(&q.recent, "recent", 0, "Show the N most recent actions")
	f.StringVar(&q.run, "run", "", "Show every action of one run")
	f.StringVar(&q.action, "action", "", "Filter by action (MOVE, RENAME, ERROR, DRY_RUN)")
	f.IntVar(&q.limit, "limit", 100, "Max rows for --action")
	f.BoolVar(&q.stats, "stats", false, "Show aggregated statistics")
	f.StringVar(&q.format, "format", formatTable, "Output format: table, json or yaml")
	return cmd
}

func (q *queryFlags) validate() error {
	if q.db == "" {
		return &ConfigError{Err: errors.New("--db is required")}
	}
	switch q.format {
	case formatTable, formatJSON, formatYAML:
	default:
		return &ConfigError{Err: fmt.Errorf("unknown format %q", q.format)}
	}
	if !q.stats && q.recent <= 0 && q.run == "" && q.action == "" {
		return &ConfigError{Err: errNoQuery}
	}
	return nil
}

func (q *queryFlags) execute(w io.Writer) error {
	if err := q.validate(); err != nil {
		return err
	}
	// Open would create a missing database
	if _, err := os.Stat(q.db); err != nil {
		return &runtimeError{err: fmt.Errorf("history database: %w", err)}
	}

	db, err := history.Open(q.db)
	if err != nil {
		return &runtimeError{err: err}
	}
	defer db.Close()

	if q.stats {
		stats, err := db.GetStats()
		if err != nil {
			return &runtimeError{err: fmt.Errorf("failed to get statistics: %w", err)}
		}
		return q.print(w, stats, func() { printStats(w, stats) })
	}

	var records []history.Record
	switch {
	case q.run != "":
		records, err = db.GetByRun(q.run)
	case q.action != "":
		records, err = db.GetByAction(q.action, q.limit)
	default:
		records, err = db.GetRecent(q.recent)
	}
	if err != nil {
		return &runtimeError{err: fmt.Errorf("failed to query history: %w", err)}
	}
	if records == nil {
		records = []history.Record{}
	}
	return q.print(w, records, func() { printRecords(w, records) })
}

func (q *queryFlags) print(w io.Writer, v interface{}, table func()) error {
	switch q.format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return &runtimeError{err: err}
		}
		fmt.Fprintln(w, string(data))
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return &runtimeError{err: err}
		}
		fmt.Fprint(w, string(data))
	default:
		table()
	}
	return nil
}

func printStats(w io.Writer, stats *history.Stats) {
	fmt.Fprintf(w, "Total Records:    %d\n", stats.TotalRecords)
	fmt.Fprintf(w, "Runs:             %d\n", stats.Runs)
	fmt.Fprintf(w, "Quarantined:      %s\n", humanize.IBytes(uint64(stats.BytesQuarantined)))

	printCounts(w, "By Action:", stats.ByAction)
	printCounts(w, "By Operation:", stats.ByOp)
}

func printCounts(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-15s %d\n", k, counts[k])
	}
}

func printRecords(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTimestamp\tAction\tSize\tPath\tDest")
	_, _ = fmt.Fprintln(tw, "--\t---------\t------\t----\t----\t----")

	for _, r := range records {
		dest := r.Dest
		if r.ErrorMessage != "" {
			dest = "error: " + r.ErrorMessage
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, humanize.IBytes(uint64(r.Size)), r.Path, dest)
	}
	_ = tw.Flush()
}
