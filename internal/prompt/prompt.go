// Package prompt collects operator input through huh forms. Forms fall back to
// accessible mode when input is not a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rewired-gh/churnwatch/internal/view"
)

// ErrAborted is returned when the operator cancels a form.
var ErrAborted = errors.New("prompt aborted")

// Prompter runs forms against one input and output.
type Prompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
	lines      *lineReader
}

// New creates a prompter. Input that is not a terminal is answered one line
// per prompt.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: in, out: out, accessible: !IsTerminal(in)}
	if p.accessible {
		p.lines = &lineReader{r: bufio.NewReader(in)}
	}
	return p
}

// lineReader returns at most one line per Read. Accessible fields scan their
// input afresh on every prompt, so a larger read would swallow later answers.
type lineReader struct {
	r *bufio.Reader
}

func (l *lineReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		c, err := l.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		b[n] = c
		n++
		if c == '\n' {
			break
		}
	}
	return n, nil
}

func (l *lineReader) exhausted() bool {
	_, err := l.r.Peek(1)
	return err != nil
}

// IsTerminal reports whether in is an interactive terminal.
func IsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Prompter) run(fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).
		WithOutput(p.out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if p.accessible {
		// Accessible fields fall back to defaults at end of input.
		if p.lines.exhausted() {
			return ErrAborted
		}
		form = form.WithInput(p.lines).WithAccessible(true)
	} else {
		form = form.WithInput(p.in)
	}

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// note shows a message that accessible fields would not render.
func (p *Prompter) note(msg string) {
	if p.accessible && msg != "" {
		fmt.Fprintln(p.out, msg) //nolint:errcheck
	}
}

// Passkey asks for the authorization key. It is not echoed on a terminal.
func (p *Prompter) Passkey(lastError string) (string, error) {
	var key string
	input := huh.NewInput().
		Title("Authorization key").
		Value(&key)
	// Accessible password fields need a tty.
	if !p.accessible {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if lastError != "" {
		input = input.Description(lastError)
		p.note(lastError)
	}
	if err := p.run(input); err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// Choice is a menu selection.
type Choice string

const (
	ChooseSample      Choice = "sample"
	ChooseUpload      Choice = "upload"
	ChooseSearch      Choice = "search"
	ChooseFilter      Choice = "filter"
	ChooseLoadMore    Choice = "more"
	ChooseDashboard   Choice = "dashboard"
	ChooseNewAnalysis Choice = "new"
	ChooseLogout      Choice = "logout"
	ChooseQuit        Choice = "quit"
)

func (p *Prompter) choose(title, description string, options []huh.Option[Choice]) (Choice, error) {
	var c Choice
	sel := huh.NewSelect[Choice]().
		Title(title).
		Options(options...).
		Value(&c)
	if description != "" {
		sel = sel.Description(description)
		p.note(description)
	}
	if err := p.run(sel); err != nil {
		return "", err
	}
	return c, nil
}

// Mode asks how to get data for a new analysis.
func (p *Prompter) Mode(lastError string) (Choice, error) {
	return p.choose("Select analysis mode", lastError, []huh.Option[Choice]{
		huh.NewOption("Run sample dataset", ChooseSample),
		huh.NewOption("Upload customer CSV", ChooseUpload),
		huh.NewOption("Log out", ChooseLogout),
		huh.NewOption("Quit", ChooseQuit),
	})
}

// FilePath asks for a CSV path. An empty answer means go back.
func (p *Prompter) FilePath(lastError string) (string, error) {
	var path string
	input := huh.NewInput().
		Title("Customer CSV path").
		Placeholder("customers.csv").
		Value(&path).
		Validate(validatePath)
	desc := "Leave empty to go back."
	if lastError != "" {
		desc = lastError + " " + desc
	}
	input = input.Description(desc)
	p.note(lastError)
	if err := p.run(input); err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

func validatePath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot open %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}

// ResultsAction asks what to do with the result table.
func (p *Prompter) ResultsAction(hasMore bool) (Choice, error) {
	options := []huh.Option[Choice]{
		huh.NewOption("Search customer ID", ChooseSearch),
		huh.NewOption("Filter by risk", ChooseFilter),
	}
	if hasMore {
		options = append(options, huh.NewOption("Load more", ChooseLoadMore))
	}
	options = append(options,
		huh.NewOption("Model dashboard", ChooseDashboard),
		huh.NewOption("New analysis", ChooseNewAnalysis),
		huh.NewOption("Log out", ChooseLogout),
		huh.NewOption("Quit", ChooseQuit),
	)
	return p.choose("Results", "", options)
}

// SearchTerm asks for a customer ID fragment, prefilled with current.
func (p *Prompter) SearchTerm(current string) (string, error) {
	s := current
	if err := p.run(huh.NewInput().
		Title("Search customer ID").
		Description("Case-insensitive substring. Leave empty to clear.").
		Value(&s)); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// RiskFilter asks for a risk filter, starting at current.
func (p *Prompter) RiskFilter(current view.RiskFilter) (view.RiskFilter, error) {
	f := current
	options := make([]huh.Option[view.RiskFilter], len(view.Filters))
	for i, rf := range view.Filters {
		options[i] = huh.NewOption(filterLabel(rf), rf)
	}
	if err := p.run(huh.NewSelect[view.RiskFilter]().
		Title("Filter by risk").
		Options(options...).
		Value(&f)); err != nil {
		return "", err
	}
	return f, nil
}

func filterLabel(f view.RiskFilter) string {
	if f == view.FilterAll {
		return "All customers"
	}
	s := strings.ToLower(string(f))
	return strings.ToUpper(s[:1]) + s[1:]
}
