package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/prompt"
	"github.com/rewired-gh/churnwatch/internal/render"
	"github.com/rewired-gh/churnwatch/internal/session"
	"github.com/rewired-gh/churnwatch/internal/upload"
	"github.com/rewired-gh/churnwatch/internal/view"
)

func newSessionCommand(root *rootOptions) *cobra.Command {
	opts := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an interactive analysis session",
		Long: `Start an interactive analysis session.

The session asks for an authorization key, then lets you score the sample
dataset or upload a customer CSV, explore the results and open the model
dashboard. Results from a previous session are restored on start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			s := &interactive{
				app:      a,
				prompter: prompt.New(cmd.InOrStdin(), cmd.OutOrStdout()),
				renderer: r,
				progress: cmd.ErrOrStderr(),
			}
			return s.run(cmd.Context())
		},
	}
	opts.register(cmd)
	return cmd
}

// interactive drives the workflow from operator prompts until quit.
type interactive struct {
	*app
	prompter *prompt.Prompter
	renderer *render.Renderer
	progress io.Writer
	results  *view.Model
}

var errQuit = errors.New("quit")

func (s *interactive) run(ctx context.Context) error {
	restored, err := s.workflow.Restore()
	if err != nil {
		return err
	}
	if restored {
		_ = s.renderer.Line("Restored results from the previous session.")
	}

	for ctx.Err() == nil {
		err := s.step(ctx)
		if errors.Is(err, errQuit) || errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *interactive) step(ctx context.Context) error {
	snap := s.workflow.Snapshot()
	switch snap.State {
	case session.Unauthenticated:
		return s.login(snap.Error)
	case session.ModeChoice:
		return s.chooseMode(snap.Error)
	case session.RequestingSample:
		return s.analyze(ctx, s.workflow.StartSample)
	case session.Uploading:
		return s.chooseFile(ctx, snap.Error)
	case session.ResultsReady:
		return s.explore(ctx)
	}
	return fmt.Errorf("unexpected state %s", snap.State)
}

func (s *interactive) login(lastError string) error {
	key, err := s.prompter.Passkey(lastError)
	if err != nil {
		return err
	}
	var authErr *session.AuthError
	if err := s.workflow.SubmitPasskey(key); err != nil && !errors.As(err, &authErr) {
		return err
	}
	return nil
}

func (s *interactive) chooseMode(lastError string) error {
	c, err := s.prompter.Mode(lastError)
	if err != nil {
		return err
	}
	switch c {
	case prompt.ChooseSample:
		return s.workflow.ChooseSampleMode()
	case prompt.ChooseUpload:
		return s.workflow.ChooseUploadMode()
	case prompt.ChooseLogout:
		return s.logout()
	}
	return errQuit
}

func (s *interactive) chooseFile(ctx context.Context, lastError string) error {
	path, err := s.prompter.FilePath(lastError)
	if err != nil {
		return err
	}
	if path == "" {
		return s.workflow.Reset()
	}
	f, err := upload.FromPath(path)
	if err != nil {
		_ = s.renderer.Line("Cannot read %s: %v", path, err)
		return nil
	}
	if err := s.workflow.SelectFile(f); err != nil {
		var invalid *upload.ValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	return s.analyze(ctx, func(ctx context.Context) (*session.Ticket, error) {
		return s.workflow.StartUpload(ctx, nil)
	})
}

// analyze runs one submission. A failed analysis is not fatal: the workflow
// falls back and the next prompt shows the message.
func (s *interactive) analyze(ctx context.Context, start func(context.Context) (*session.Ticket, error)) error {
	err := runAnalysis(ctx, s.workflow, s.progress, start)
	var failed *analysisError
	if errors.As(err, &failed) || errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		s.results = nil
	}
	return err
}

func (s *interactive) explore(ctx context.Context) error {
	if s.results == nil {
		m, err := s.workflow.View()
		if err != nil {
			return err
		}
		s.results = m
	}
	m := s.results
	if err := s.renderer.Results(m, s.workflow.Result().SummarySource); err != nil {
		return err
	}

	c, err := s.prompter.ResultsAction(m.HasMore())
	if err != nil {
		return err
	}
	switch c {
	case prompt.ChooseSearch:
		term, err := s.prompter.SearchTerm(m.Query().SearchTerm)
		if err != nil {
			return err
		}
		m.SetSearchTerm(term)
	case prompt.ChooseFilter:
		f, err := s.prompter.RiskFilter(m.Query().RiskFilter)
		if err != nil {
			return err
		}
		m.SetRiskFilter(f)
	case prompt.ChooseLoadMore:
		m.IncreaseDisplayLimit(s.cfg.View.LimitStep)
	case prompt.ChooseDashboard:
		d, err := s.workflow.LoadDashboard(ctx)
		if err != nil {
			return err
		}
		return s.renderer.Dashboard(d, s.cfg.View.TopFeatures)
	case prompt.ChooseNewAnalysis:
		s.results = nil
		return s.workflow.NewAnalysis()
	case prompt.ChooseLogout:
		return s.logout()
	default:
		return errQuit
	}
	return nil
}

func (s *interactive) logout() error {
	s.results = nil
	if err := s.workflow.Logout(); err != nil {
		return err
	}
	logger.Debug("Logged out from interactive session")
	return s.renderer.Line("Logged out.")
}
