package progress

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
	"kv-migrator/internal/migrate"

	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/olekukonko/tablewriter"
)

// ConsoleReporter prints a line per key and a summary table to a terminal
// or any other writer.
//
// A failing writer never affects the migration: the first write error is
// counted in reporter_errors_total, logged at debug level, and later
// output is dropped.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	logger  *logs.Logger
	metrics *metrics.Registry
	clock   clockwork.Clock
	broken  bool
	counted bool

	copied  *color.Color
	skipped *color.Color
	failed  *color.Color
}

var (
	_ migrate.Reporter = (*ConsoleReporter)(nil)
	_ migrate.Starter  = (*ConsoleReporter)(nil)
)

// NewConsoleReporter creates a new ConsoleReporter. Colors are only used
// when colored is set and the process output is a terminal.
func NewConsoleReporter(out io.Writer, colored bool, logger *logs.Logger, reg *metrics.Registry, clock clockwork.Clock) *ConsoleReporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &ConsoleReporter{
		out:     out,
		logger:  logger,
		metrics: reg,
		clock:   clock,
		copied:  color.New(color.FgGreen),
		skipped: color.New(color.FgYellow),
		failed:  color.New(color.FgRed, color.Bold),
	}
	if !colored {
		r.copied.DisableColor()
		r.skipped.DisableColor()
		r.failed.DisableColor()
	}
	return r
}

// Started prints the key count ahead of the copy when the listing is a
// snapshot.
func (r *ConsoleReporter) Started(keys int) {
	r.mu.Lock()
	r.counted = true
	r.mu.Unlock()

	r.printf("Keys Count : %d\n", keys)
}

func (r *ConsoleReporter) KeyDone(rec migrate.Record) {
	switch rec.Outcome {
	case migrate.Copied:
		r.printf("%s : %s\n", r.copied.Sprint("Keys Copied"), rec.Key)
	case migrate.Skipped:
		r.printf("%s : %s (%s)\n", r.skipped.Sprint("Keys Skipped"), rec.Key, rec.Reason)
	case migrate.Failed:
		r.printf("%s : %s (%v)\n", r.failed.Sprint("Keys Failed"), rec.Key, rec.Err)
	}
}

func (r *ConsoleReporter) Finished(s migrate.Summary) {
	var buf bytes.Buffer

	r.mu.Lock()
	counted := r.counted
	r.mu.Unlock()
	if !counted {
		fmt.Fprintf(&buf, "Keys Count : %d\n", s.Total)
	}
	if s.Interrupted {
		fmt.Fprintf(&buf, "Copy Interrupted : %s\n", r.clock.Now().Format(time.RFC3339))
	} else {
		fmt.Fprintf(&buf, "Copy Finished : %s\n", r.clock.Now().Format(time.RFC3339))
	}

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Outcome", "Keys"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"copied", strconv.Itoa(s.Copied)})
	table.Append([]string{"skipped", strconv.Itoa(s.Skipped)})
	table.Append([]string{"failed", strconv.Itoa(s.Failed)})
	table.SetFooter([]string{"elapsed", s.Elapsed.Round(time.Millisecond).String()})
	table.Render()

	if len(s.Failures) > 0 {
		failures := tablewriter.NewWriter(&buf)
		failures.SetAutoFormatHeaders(false)
		failures.SetHeader([]string{"Failed key", "Error"})
		failures.SetAutoWrapText(false)
		for _, f := range s.Failures {
			failures.Append([]string{f.Key, f.Error})
		}
		failures.Render()
	}
	if s.FailuresDropped > 0 {
		fmt.Fprintf(&buf, "... and %d more failed keys\n", s.FailuresDropped)
	}

	r.printf("%s", buf.String())
}

func (r *ConsoleReporter) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.broken {
		return
	}
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.broken = true
		r.metrics.Inc(metrics.ReporterErrorsTotal)
		r.logger.Debug("console progress output failed, dropping further output", "error", err)
	}
}
