package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/prompt"
	"github.com/rewired-gh/churnwatch/internal/render"
	"github.com/rewired-gh/churnwatch/internal/session"
	"github.com/rewired-gh/churnwatch/internal/upload"
	"github.com/rewired-gh/churnwatch/internal/view"
)

const passkeyEnv = "CHURNWATCH_PASSKEY"

// outputFlags select the output format.
type outputFlags struct {
	output  string
	noColor bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "Disable colored risk levels")
}

func (o *outputFlags) renderer(w io.Writer) (*render.Renderer, error) {
	format, err := render.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}
	return render.New(w, format, !o.noColor && isTerminal(w)), nil
}

// queryFlags narrow the customer table.
type queryFlags struct {
	outputFlags
	search string
	risk   string
	limit  int
}

func (q *queryFlags) register(cmd *cobra.Command) {
	q.outputFlags.register(cmd)
	cmd.Flags().StringVar(&q.search, "search", "", "Show customers whose ID contains this text")
	cmd.Flags().StringVar(&q.risk, "risk", "ALL", "Risk filter: ALL, CRITICAL, AT-RISK, STABLE or LOYAL")
	cmd.Flags().IntVar(&q.limit, "limit", 0, "Rows to show (0 uses the configured default)")
}

func (q *queryFlags) apply(m *view.Model) error {
	f, err := view.ParseRiskFilter(q.risk)
	if err != nil {
		return err
	}
	m.SetSearchTerm(q.search)
	m.SetRiskFilter(f)
	if q.limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", q.limit)
	}
	m.SetDisplayLimit(q.limit)
	return nil
}

func (q *queryFlags) render(w io.Writer, wf *session.Workflow) error {
	r, err := q.renderer(w)
	if err != nil {
		return err
	}
	m, err := wf.View()
	if err != nil {
		return err
	}
	if err := q.apply(m); err != nil {
		return err
	}
	return r.Results(m, wf.Result().SummarySource)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && prompt.IsTerminal(f)
}

// authenticate submits the passkey from the flag or environment, or prompts
// for one when stdin is a terminal.
func authenticate(cmd *cobra.Command, wf *session.Workflow, passkey string) error {
	if passkey == "" {
		passkey = os.Getenv(passkeyEnv)
	}
	if passkey == "" {
		in := cmd.InOrStdin()
		if !prompt.IsTerminal(in) {
			return &session.AuthError{Message: fmt.Sprintf("An authorization key is required. Use --passkey or set %s.", passkeyEnv)}
		}
		key, err := prompt.New(in, cmd.ErrOrStderr()).Passkey("")
		if err != nil {
			return err
		}
		passkey = key
	}
	return wf.SubmitPasskey(passkey)
}

// runAnalysis starts a submission and blocks until its outcome is applied.
func runAnalysis(ctx context.Context, wf *session.Workflow, progress io.Writer, start func(context.Context) (*session.Ticket, error)) error {
	ticket, err := start(ctx)
	if err != nil {
		return err
	}

	stop := func() {}
	if isTerminal(progress) {
		stop = render.StartProgress(progress, "Analyzing customers", func() int {
			return wf.Snapshot().Progress
		})
	}
	<-ticket.Done()
	stop()

	snap := wf.Snapshot()
	if snap.State == session.ResultsReady {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &analysisError{Message: snap.Error}
}

type analyzeOptions struct {
	queryFlags
	passkey string
}

func (o *analyzeOptions) register(cmd *cobra.Command) {
	o.queryFlags.register(cmd)
	cmd.Flags().StringVar(&o.passkey, "passkey", "", "Authorization key (defaults to $"+passkeyEnv+")")
}

func newSampleCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Score the server's sample dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			if err := authenticate(cmd, a.workflow, opts.passkey); err != nil {
				return err
			}
			if err := a.workflow.ChooseSampleMode(); err != nil {
				return err
			}
			if err := runAnalysis(cmd.Context(), a.workflow, cmd.ErrOrStderr(), a.workflow.StartSample); err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), a.workflow)
		},
	}
	opts.register(cmd)
	return cmd
}

func newPredictCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "predict FILE",
		Short: "Upload a customer CSV and score it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := upload.FromPath(args[0])
			if err != nil {
				return err
			}
			if err := authenticate(cmd, a.workflow, opts.passkey); err != nil {
				return err
			}
			if err := a.workflow.ChooseUploadMode(); err != nil {
				return err
			}
			if err := a.workflow.SelectFile(f); err != nil {
				var invalid *upload.ValidationError
				if errors.As(err, &invalid) {
					return &analysisError{Message: invalid.Message}
				}
				return err
			}
			logger.Debug("Uploading %s (%d bytes)", f.Name, f.Size)
			start := func(ctx context.Context) (*session.Ticket, error) {
				return a.workflow.StartUpload(ctx, nil)
			}
			if err := runAnalysis(cmd.Context(), a.workflow, cmd.ErrOrStderr(), start); err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), a.workflow)
		},
	}
	opts.register(cmd)
	return cmd
}
