package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/crmdesk-go/internal/cli/output"
	"github.com/yndnr/crmdesk-go/internal/config"
	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/infra/buildinfo"
)

// Metadata keys on cli.App.
const (
	metaConfig      = "config"
	metaLoadOptions = "loadOptions"
	metaRuntime     = "runtime"
	metaOwned       = "runtimeOwned"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "crmdesk",
		Usage:                "Customer workspace for small-business CRM accounts",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		DefaultCommand:       "shell",
		Metadata:             map[string]any{},
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			StatusCommand(),
			RefreshCommand(),
			FetchCommand(),
			ConfigCommand(),
			VersionCommand(),
			ShellCommand(),
		},
		Before: loadConfig,
		After:  closeRuntime,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (default: " + config.DefaultConfigFile() + ")",
			EnvVars: []string{"CRMDESK_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Dotenv file with CRMDESK_* variables",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Backend base URL (e.g., https://crm.example.com)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory holding the persisted session",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	EnvFile    string
	Backend    string
	DataDir    string

	Output output.Format
	Wide   bool

	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		EnvFile:    c.String("env-file"),
		Backend:    c.String("backend"),
		DataDir:    c.String("data-dir"),
		Output:     format,
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
	}, nil
}

// loadOptions maps the global flags onto configuration sources. Flags
// override every other source.
func (f *GlobalFlags) loadOptions() config.LoadOptions {
	overrides := map[string]any{}
	if f.Backend != "" {
		overrides["backend.base_url"] = f.Backend
	}
	if f.DataDir != "" {
		overrides["storage.dir"] = f.DataDir
	}
	if f.Verbose {
		overrides["log.level"] = "debug"
	}
	return config.LoadOptions{
		File:      f.ConfigFile,
		DotEnv:    f.EnvFile,
		Overrides: overrides,
	}
}

// loadConfig resolves the configuration before any command runs. An
// injected runtime brings its own configuration.
func loadConfig(c *cli.Context) error {
	if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
		c.App.Metadata[metaConfig] = rt.Config
		return nil
	}

	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	opts := flags.loadOptions()
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLoadOptions] = opts
	return nil
}

// GetConfig returns the configuration loaded for this invocation.
func GetConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// SetRuntime injects a runtime the App will use without closing it.
func SetRuntime(app *cli.App, rt *Runtime) {
	if app.Metadata == nil {
		app.Metadata = map[string]any{}
	}
	app.Metadata[metaRuntime] = rt
	app.Metadata[metaOwned] = false
}

// EnsureRuntime returns the runtime, opening it on first use. The
// returned runtime has finished its initial restore.
func EnsureRuntime(c *cli.Context) (*Runtime, error) {
	rt, err := runtimeFor(c)
	if err != nil {
		return nil, err
	}
	rt.Start(c.Context)
	return rt, nil
}

func runtimeFor(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
		return rt, nil
	}
	rt, err := OpenRuntime(c.Context, GetConfig(c))
	if err != nil {
		return nil, err
	}
	c.App.Metadata[metaRuntime] = rt
	c.App.Metadata[metaOwned] = true
	return rt, nil
}

// closeRuntime releases a runtime this App opened itself.
func closeRuntime(c *cli.Context) error {
	owned, _ := c.App.Metadata[metaOwned].(bool)
	rt, ok := c.App.Metadata[metaRuntime].(*Runtime)
	if !owned || !ok {
		return nil
	}
	delete(c.App.Metadata, metaRuntime)
	return rt.Close()
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// PrintError writes err to w with a hint for the common cases.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		fmt.Fprintln(w, "hint: run `crmdesk login` first")
	case errors.Is(err, domain.ErrBackendUnavailable):
		fmt.Fprintln(w, "hint: check backend.base_url or pass --backend")
	case errors.Is(err, domain.ErrRateLimited):
		fmt.Fprintln(w, "hint: wait a few seconds before trying again")
	}
}
