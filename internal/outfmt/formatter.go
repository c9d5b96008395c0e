package outfmt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/KornAlexander/semantic-link-labs/internal/frame"
)

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx       context.Context
	out       io.Writer
	errOut    io.Writer
	tabWriter *tabwriter.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:       ctx,
		out:       out,
		errOut:    errOut,
		tabWriter: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes data as JSON (with --query and --template applied) when a
// JSON mode is active, or through the template in text mode. It reports
// whether anything was written so text callers can fall back to a table.
func (f *Formatter) Output(data any) (bool, error) {
	tmpl := GetTemplate(f.ctx)
	if !IsJSON(f.ctx) && tmpl == "" {
		return false, nil
	}

	mode := ModeFromContext(f.ctx)
	if mode != JSONL {
		data = wrapList(data)
	}
	filtered, err := ApplyQuery(data, GetQuery(f.ctx))
	if err != nil {
		return true, err
	}
	if tmpl != "" {
		return true, WriteTemplate(f.out, filtered, tmpl)
	}
	if mode == JSONL {
		return true, WriteJSONLines(f.out, filtered)
	}
	return true, WriteJSON(f.out, filtered, IsCompact(f.ctx))
}

// Frame renders a frame as a table in text mode, or as a list of records
// keyed by column header in JSON modes.
func (f *Formatter) Frame(fr frame.Frame, emptyMessage string) error {
	if handled, err := f.Output(fr.Records()); handled {
		return err
	}
	if fr.Len() == 0 {
		if emptyMessage != "" {
			f.Empty(emptyMessage)
		}
		return nil
	}
	f.StartTable(fr.Headers())
	for i := 0; i < fr.Len(); i++ {
		f.Row(fr.Text(i)...)
	}
	return f.EndTable()
}

// KeyValues renders label/value pairs as a two-column table in text mode.
func (f *Formatter) KeyValues(data any, pairs [][2]string) error {
	if handled, err := f.Output(data); handled {
		return err
	}
	for _, p := range pairs {
		_, _ = fmt.Fprintf(f.tabWriter, "%s:\t%s\n", p[0], p[1])
	}
	return f.EndTable()
}

// StartTable writes table headers. Returns true if in text mode.
func (f *Formatter) StartTable(headers []string) bool {
	if IsJSON(f.ctx) {
		return false
	}
	_, _ = fmt.Fprintln(f.tabWriter, strings.Join(headers, "\t"))
	return true
}

// Row writes a single row to the table.
func (f *Formatter) Row(columns ...string) {
	_, _ = fmt.Fprintln(f.tabWriter, strings.Join(columns, "\t"))
}

// EndTable flushes the table output.
func (f *Formatter) EndTable() error {
	return f.tabWriter.Flush()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}

// Status writes a human confirmation line to stderr in text mode only, so
// stdout stays machine-readable.
func (f *Formatter) Status(format string, args ...any) {
	if IsJSON(f.ctx) {
		return
	}
	_, _ = fmt.Fprintf(f.errOut, format+"\n", args...)
}
