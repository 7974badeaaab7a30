package report

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

//go:embed templates/*.tpl
var templatesFS embed.FS

const defaultTemplate = "report.tpl"

// Severity labels used in rendered entries.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Entry is one line of a report.
type Entry struct {
	Severity string
	Code     string
	Path     string
	Message  string
}

func (e Entry) text() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(e.Code)
		b.WriteString("] ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Report collects the outcome of one CLI operation.
type Report struct {
	Operation string
	App       string
	Revision  string
	Entries   []Entry
	// Payload is printed verbatim after the entries, typically the
	// normalized JSON of a dry run.
	Payload string
}

// Warn appends one warning entry per message.
func (r *Report) Warn(messages ...string) {
	for _, msg := range messages {
		r.Entries = append(r.Entries, Entry{Severity: SeverityWarning, Message: msg})
	}
}

// Fail appends err as error entries. Normalization errors keep their code and
// path; platform errors are expanded into one entry per field message.
func (r *Report) Fail(err error) {
	if err == nil {
		return
	}
	var derr *diag.Error
	if errors.As(err, &derr) {
		r.Entries = append(r.Entries, Entry{Severity: SeverityError, Code: string(derr.Code), Path: derr.Path, Message: derr.Message})
		return
	}
	remote, ok := platform.AsRemote(err)
	if !ok {
		r.Entries = append(r.Entries, Entry{Severity: SeverityError, Message: err.Error()})
		return
	}
	message := remote.Message
	if remote.Status != 0 {
		message = fmt.Sprintf("%s (status %d)", message, remote.Status)
	}
	r.Entries = append(r.Entries, Entry{Severity: SeverityError, Code: remote.Code, Message: message})

	mapping := remote.FieldErrors()
	codes := make([]string, 0, len(mapping.Fields))
	for code := range mapping.Fields {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, msg := range mapping.Fields[code] {
			r.Entries = append(r.Entries, Entry{Severity: SeverityError, Path: code, Message: msg})
		}
	}
	for _, msg := range mapping.Form {
		r.Entries = append(r.Entries, Entry{Severity: SeverityError, Message: msg})
	}
}

// Count returns the number of entries with the given severity.
func (r *Report) Count(severity string) int {
	n := 0
	for _, entry := range r.Entries {
		if entry.Severity == severity {
			n++
		}
	}
	return n
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor toggles ANSI colouring of severity labels.
func WithColor(enabled bool) Option {
	return func(r *Renderer) {
		r.color = enabled
	}
}

// WithTemplatesFS replaces the embedded templates. The filesystem must
// contain report.tpl at its root.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(r *Renderer) {
		if fsys != nil {
			r.templates = fsys
		}
	}
}

// Renderer renders reports through a pongo2 template.
type Renderer struct {
	mu        sync.Mutex
	templates fs.FS
	tpl       *pongo2.Template
	color     bool
	warning   *color.Color
	failure   *color.Color
	ok        *color.Color
}

// New constructs a Renderer, parsing the report template eagerly.
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.templates == nil {
		sub, err := fs.Sub(templatesFS, "templates")
		if err != nil {
			return nil, fmt.Errorf("report: open templates: %w", err)
		}
		r.templates = sub
	}

	set := pongo2.NewSet("report", pongo2.NewFSLoader(r.templates))
	set.Options.TrimBlocks = true
	set.Options.LStripBlocks = true
	tpl, err := set.FromFile(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", defaultTemplate, err)
	}
	r.tpl = tpl

	r.warning = color.New(color.FgYellow, color.Bold)
	r.failure = color.New(color.FgRed, color.Bold)
	r.ok = color.New(color.FgGreen)
	for _, c := range []*color.Color{r.warning, r.failure, r.ok} {
		if r.color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r, nil
}

// Render writes rep to w.
func (r *Renderer) Render(w io.Writer, rep Report) error {
	entries := make([]map[string]any, 0, len(rep.Entries))
	for _, entry := range rep.Entries {
		entries = append(entries, map[string]any{
			"label": r.label(entry.Severity),
			"text":  entry.text(),
		})
	}
	ctx := pongo2.Context{
		"heading": heading(rep),
		"entries": entries,
		"payload": strings.TrimRight(rep.Payload, "\n"),
		"summary": r.summary(rep),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	return nil
}

func (r *Renderer) label(severity string) string {
	switch severity {
	case SeverityError:
		return r.failure.Sprint("error  ")
	default:
		return r.warning.Sprint("warning")
	}
}

func (r *Renderer) summary(rep Report) string {
	errs := rep.Count(SeverityError)
	warns := rep.Count(SeverityWarning)
	if errs > 0 {
		return r.failure.Sprintf("failed: %s, %s", plural(errs, "error"), plural(warns, "warning"))
	}
	return r.ok.Sprintf("ok: %s", plural(warns, "warning"))
}

func heading(rep Report) string {
	parts := []string{rep.Operation}
	if rep.App != "" {
		parts = append(parts, "app "+rep.App)
	}
	if rep.Revision != "" {
		parts = append(parts, "revision "+rep.Revision)
	}
	return strings.Join(parts, " | ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
