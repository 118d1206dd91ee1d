package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"trashtrim/internal/operation"
	"trashtrim/internal/runner"
)

const dryRunPrefix = operation.DryRunPrefix

// textSink prints the line-oriented run report
type textSink struct {
	w      io.Writer
	dryRun bool
}

func (s *textSink) TrashReady(path string, created bool) {
	state := "exists"
	if created {
		state = "created"
	}
	fmt.Fprintf(s.w, "%strash directory %s %s\n", s.prefix(), path, state)
}

func (s *textSink) Result(res operation.Result) {
	fmt.Fprintln(s.w, res.Message())
}

func (s *textSink) Summary(sum runner.Summary) {
	fmt.Fprintf(s.w, "%s%s\n", s.prefix(), FormatSummary(sum))
}

func (s *textSink) prefix() string {
	if s.dryRun {
		return dryRunPrefix
	}
	return ""
}

// FormatSummary renders the final counters on one line
func FormatSummary(sum runner.Summary) string {
	return fmt.Sprintf("use:%d threads, total:%d, success:%d, failed:%d, quarantined:%s, elapsed:%s",
		sum.Workers,
		sum.Seen,
		sum.Matched,
		sum.Failed,
		humanize.IBytes(uint64(sum.BytesQuarantined)),
		sum.Elapsed.Round(time.Millisecond),
	)
}
