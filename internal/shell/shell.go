// Package shell is the interactive terminal client. It is the only source of
// user activity for the session manager and the consumer of its expiry.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chrisapx/fif-client-sub000/internal/app"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionExpired is returned by Run when the session timed out, or the
	// server rejected it, while the shell was open.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoggedOut is returned by Run when the user logged out from the shell.
	ErrLoggedOut = errors.New("logged out")
)

func Run(ctx context.Context, a *app.App) error {

	user, clientID, err := a.RequireClient()
	if err != nil {
		return err
	}

	load := func(ctx context.Context) ([]app.Selection, error) {
		accounts, err := a.API.GetClientAccounts(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return app.SelectionsFromAccounts(accounts), nil
	}

	model := NewModel(Options{
		Context:   ctx,
		Username:  user.Username,
		Activity:  a.Activity,
		Session:   a.Session,
		Navigator: a,
		Load:      load,
	})

	programOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}
	if a.Config.Shell.Mouse {
		programOpts = append(programOpts, tea.WithMouseAllMotion())
	}

	program := tea.NewProgram(model, programOpts...)

	// The alt screen owns the terminal; entries still reach the ring buffer.
	restore := silenceLogging()
	defer restore()

	// Scheduling can fail, so it goes first. An active session with nothing
	// listening for its expiry would outlive this call.
	if interval := a.Config.Shell.RefreshInterval; interval > 0 {
		scheduler, err := scheduleRefresh(ctx, interval, load, program.Send)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	a.Session.Init(func() {
		program.Send(expiredMsg{})
	}, nil)

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("shell failed: %w", err)
	}

	if m, ok := final.(Model); ok {
		switch {
		case m.loggedOut:
			return ErrLoggedOut
		case m.expired:
			return ErrSessionExpired
		}
	}

	return nil
}

// scheduleRefresh reloads balances on a fixed interval. Refreshes are not
// user activity and never touch the session.
func scheduleRefresh(ctx context.Context, interval time.Duration, load Loader, send func(tea.Msg)) (*gocron.Scheduler, error) {

	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		selections, err := load(ctx)
		if errors.Is(err, fineract.ErrUnauthorized) {
			send(errorMsg{err: err})
			return
		}
		if err != nil {
			logrus.WithError(err).Warnln("Background balance refresh failed")
			return
		}
		send(accountsMsg{selections: selections, background: true})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule balance refresh: %w", err)
	}

	scheduler.StartAsync()

	logrus.WithField("interval", interval).Debugln("Balance refresh scheduled")

	return scheduler, nil
}

func silenceLogging() func() {
	logger := logrus.StandardLogger()
	previous := logger.Out
	logger.SetOutput(io.Discard)
	return func() {
		logger.SetOutput(previous)
	}
}
