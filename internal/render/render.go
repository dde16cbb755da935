// Package render writes results and dashboard data as terminal tables, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/churnwatch/internal/risk"
)

// Format is an output format.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Table, JSON, YAML:
		return f, nil
	case "":
		return Table, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Renderer writes to one destination in one format.
type Renderer struct {
	w      io.Writer
	format Format
	color  bool
}

// New creates a renderer. color enables ANSI risk colors in tables.
func New(w io.Writer, format Format, color bool) *Renderer {
	if format == "" {
		format = Table
	}
	return &Renderer{w: w, format: format, color: color}
}

// Format returns the output format.
func (r *Renderer) Format() Format { return r.format }

func (r *Renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func (r *Renderer) writeTable(t table.Writer) error {
	_, err := fmt.Fprintln(r.w, t.Render())
	return err
}

// encode writes doc as JSON or YAML. It must not be called for Table.
func (r *Renderer) encode(doc any) error {
	switch r.format {
	case JSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case YAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %s is not a document format", r.format)
}

// Line writes a plain message. Document formats skip it.
func (r *Renderer) Line(format string, args ...any) error {
	if r.format != Table {
		return nil
	}
	_, err := fmt.Fprintf(r.w, format+"\n", args...)
	return err
}

var riskColors = map[risk.Level]text.Colors{
	risk.Critical: {text.FgRed, text.Bold},
	risk.AtRisk:   {text.FgHiRed},
	risk.Stable:   {text.FgYellow},
	risk.Loyal:    {text.FgGreen},
}

func (r *Renderer) level(l risk.Level) string {
	if !r.color {
		return string(l)
	}
	if c, ok := riskColors[l]; ok {
		return c.Sprint(string(l))
	}
	return string(l)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}
