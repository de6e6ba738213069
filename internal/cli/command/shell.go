package command

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/crmdesk-go/internal/cli/repl"
	"github.com/yndnr/crmdesk-go/internal/config"
	"github.com/yndnr/crmdesk-go/internal/infra/confloader"
	"github.com/yndnr/crmdesk-go/internal/infra/shutdown"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

const shutdownTimeout = 5 * time.Second

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "Start an interactive session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "Command history file",
				Value: filepath.Join(config.DefaultConfigDir(), "history"),
			},
		},
		Action: shell,
	}
}

func shell(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	rt, err := runtimeFor(c)
	if err != nil {
		return err
	}

	ctx, stop := shutdown.WithSignals(c.Context)
	defer stop()

	h := shutdown.NewHandler(shutdownTimeout)

	hist := repl.NewHistory(c.String("history-file"))
	if err := hist.Load(); err != nil {
		rt.Log.Warn("history not loaded", "error", err)
	}
	h.OnShutdown(func(context.Context) error { return hist.Save() })

	var r *repl.REPL
	r = repl.New(
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithHistory(hist),
		repl.WithSession(rt.Store.Snapshot),
		repl.WithExecutor(func(ctx context.Context, args []string) error {
			return runLine(ctx, c, rt, flags, lineReader(c.App.Reader, r), args)
		}),
	)

	sub := rt.Store.Subscribe()
	followDone := make(chan struct{})
	go func() {
		defer close(followDone)
		r.Follow(ctx, sub)
	}()
	h.OnShutdown(func(context.Context) error {
		sub.Close()
		<-followDone
		return nil
	})

	if addr := rt.Config.Metrics.Address; addr != "" {
		go func() {
			if err := rt.Metrics.Serve(ctx, addr); err != nil {
				rt.Log.Error("metrics endpoint stopped", "address", addr, "error", err)
			}
		}()
	}

	if w := watchConfig(c, rt); w != nil {
		h.OnShutdown(func(context.Context) error { return w.Stop() })
	}

	rt.Start(ctx)

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	select {
	case err = <-runErr:
	case <-ctx.Done():
		// A pending read on the terminal cannot be interrupted; leave it.
		err = nil
	}

	stop()
	if serr := h.Shutdown(); serr != nil {
		rt.Log.Warn("shell cleanup incomplete", "error", serr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runLine executes one shell line as a fresh App sharing rt.
func runLine(ctx context.Context, parent *cli.Context, rt *Runtime, flags *GlobalFlags, in io.Reader, args []string) error {
	app := App()
	app.Reader = in
	app.Writer = parent.App.Writer
	app.ErrWriter = parent.App.ErrWriter
	app.ExitErrHandler = func(*cli.Context, error) {}
	SetRuntime(app, rt)

	argv := []string{app.Name, "--output", string(flags.Output)}
	if flags.Wide {
		argv = append(argv, "--wide")
	}
	return app.RunContext(ctx, append(argv, args...))
}

// lineReader picks the reader prompts use inside the shell. A terminal is
// line-buffered by the OS, so it is read directly to allow hidden input.
func lineReader(in io.Reader, r *repl.REPL) io.Reader {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return f
	}
	return r.Input()
}

// watchConfig reloads the log level when the configuration file changes.
// Returns nil when there is no file to watch.
func watchConfig(c *cli.Context, rt *Runtime) *confloader.Watcher {
	opts, ok := c.App.Metadata[metaLoadOptions].(config.LoadOptions)
	if !ok {
		return nil
	}
	file := opts.File
	if file == "" {
		file = config.DefaultConfigFile()
	}
	if _, err := os.Stat(file); err != nil {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(rt.Log))
	if err != nil {
		rt.Log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := w.Watch(file); err != nil {
		w.Stop()
		return nil
	}

	w.OnChange(func(path string) {
		cfg, err := config.Load(opts)
		if err != nil {
			rt.Log.Warn("config reload rejected", "file", path, "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		rt.Log.Info("config reloaded", "file", path, "log_level", cfg.Log.Level)
	})
	w.StartAsync()
	return w
}
