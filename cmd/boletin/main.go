// boletin is a terminal client for the school's notification and message
// inbox. Without a subcommand it opens the interactive view; the
// subcommands run one operation and exit.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"

	"github.com/nhle/boletin/internal/app"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/notify"
	"github.com/nhle/boletin/internal/rolepreview"
	"github.com/nhle/boletin/internal/session"
)

// commandTimeout bounds the one-shot subcommands.
const commandTimeout = 60 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if session.IsAuthError(err) {
			fmt.Fprintln(os.Stderr, "run `boletin login` to sign in again")
		}
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var verbose bool
	var asJSON bool

	flagSet := pflag.NewFlagSet("boletin", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	flagSet.BoolVar(&asJSON, "json", false, "print results as JSON")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	args := flagSet.Args()
	sub := "tui"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	if sub == "tui" {
		return runTUI(cfg, verbose)
	}

	logger := newLogger(os.Stderr, verbose)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	navigator := session.NavigatorFunc(func(reason string) {
		logger.Debug("session ended", "reason", reason)
	})
	rt, err := wire(ctx, cfg, logger, navigator)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := &printer{w: os.Stdout, json: asJSON}

	switch sub {
	case "login":
		return runLogin(ctx, rt, args)
	case "logout":
		rt.terminator.Logout(ctx)
		fmt.Fprintln(os.Stdout, "logged out")
		return nil
	case "whoami":
		return runWhoAmI(ctx, rt, out)
	case "unread":
		return runUnread(ctx, rt, out)
	case "notifications":
		return runNotifications(ctx, rt, out)
	case "mark-all-read":
		return runMarkAllRead(ctx, rt, args)
	case "view-as":
		return runViewAs(rt, args)
	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown command %q", sub)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runTUI owns the terminal, so logs go to a file next to the config.
func runTUI(cfg *model.AppConfig, verbose bool) error {
	logPath := filepath.Join(model.ConfigDir(), "boletin.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	loginRequests := make(chan string, 1)
	navigator := session.NavigatorFunc(func(reason string) {
		select {
		case loginRequests <- reason:
		default:
			// A login request is already pending.
		}
	})

	rt, err := wire(context.Background(), cfg, logger, navigator)
	if err != nil {
		return err
	}
	defer rt.Close()

	m := app.New(app.Deps{
		Client:        rt.client,
		Session:       rt.session,
		Terminator:    rt.terminator,
		Tokens:        rt.tokens,
		Preview:       rt.preview,
		Aggregator:    rt.aggregator,
		Service:       rt.service,
		Feed:          rt.feed,
		LoginRequests: loginRequests,
		Logger:        logger,
	})
	defer m.Close()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = program.Run()
	return err
}

func runLogin(ctx context.Context, rt *runtime, args []string) error {
	var username, password string
	if len(args) > 0 {
		username = args[0]
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	if err := session.Login(ctx, rt.session, strings.TrimSpace(username), password); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "signed in")
	return nil
}

func runWhoAmI(ctx context.Context, rt *runtime, out *printer) error {
	id, err := rt.client.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if out.json {
		return out.encode(id)
	}
	fmt.Fprintf(out.w, "%s <%s>\n", id.Username, id.Email)
	if id.FullName != "" {
		fmt.Fprintf(out.w, "name:   %s\n", id.FullName)
	}
	role := rt.preview.Get()
	if id.IsSuperuser && role != "" {
		fmt.Fprintf(out.w, "viewing as: %s\n", role)
	}
	fmt.Fprintf(out.w, "groups: %s\n", strings.Join(rolepreview.EffectiveGroups(id, role), ", "))
	return nil
}

func runUnread(ctx context.Context, rt *runtime, out *printer) error {
	counters, err := rt.waitForPass(ctx)
	if err != nil {
		return fmt.Errorf("fetching unread counters: %w", err)
	}
	if out.json {
		return out.encode(struct {
			model.UnreadCounters
			Total int `json:"total"`
		}{counters, counters.Total()})
	}
	fmt.Fprintf(out.w, "messages:      %d\n", counters.Messages)
	fmt.Fprintf(out.w, "notifications: %d\n", counters.Notifications)
	fmt.Fprintf(out.w, "badge:         %s\n", orDash(notify.Badge(counters.Total())))
	return nil
}

func runNotifications(ctx context.Context, rt *runtime, out *printer) error {
	items := rt.feed.Refresh(ctx)
	if out.json {
		return out.encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(out.w, "no unread notifications")
		return nil
	}
	for _, n := range items {
		marker := " "
		if n.Unread {
			marker = "*"
		}
		fmt.Fprintf(out.w, "%s [%s] %s\n", marker, n.Kind, n.Title)
		if n.Description != "" {
			fmt.Fprintf(out.w, "    %s\n", n.Description)
		}
		fmt.Fprintf(out.w, "    %s\n", n.TargetLink)
	}
	return nil
}

func runMarkAllRead(ctx context.Context, rt *runtime, args []string) error {
	if len(args) > 0 && args[0] == "messages" {
		if !rt.service.MarkAllMessagesRead(ctx) {
			return fmt.Errorf("no endpoint accepted the request")
		}
		fmt.Fprintln(os.Stdout, "all messages marked as read")
		return nil
	}

	// The feed only acts when it knows of something unread.
	rt.feed.Refresh(ctx)
	if _, err := rt.waitForPass(ctx); err != nil {
		rt.logger.Debug("counter pass before mark-all", "error", err)
	}
	if !rt.feed.MarkAllRead(ctx) {
		fmt.Fprintln(os.Stdout, "nothing to mark")
		return nil
	}
	fmt.Fprintln(os.Stdout, "all notifications marked as read")
	return nil
}

func runViewAs(rt *runtime, args []string) error {
	role := ""
	if len(args) > 0 {
		role = strings.TrimSpace(args[0])
	}
	if role != "" && !model.IsValidRole(role) {
		return fmt.Errorf("unknown role %q (valid: %s)", role, strings.Join(model.AllRoles, ", "))
	}
	rt.preview.Set(role)
	if role == "" {
		fmt.Fprintln(os.Stdout, "role preview ended")
		return nil
	}
	fmt.Fprintf(os.Stdout, "viewing as %s\n", role)
	return nil
}

type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) encode(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `boletin: notifications and messages from the terminal.

Usage:
  boletin [flags] [command]

Commands:
  tui                      interactive view (default)
  login [username]         sign in with username and password
  logout                   revoke the session and clear local data
  whoami                   show the signed-in user
  unread                   show unread message and notification counts
  notifications            list recent unread notifications
  mark-all-read [messages] mark every notification (or message) as read
  view-as [role]           preview the app as another role; no role ends it

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
