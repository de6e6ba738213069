package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/crmdesk-go/internal/cli/output"
	"github.com/yndnr/crmdesk-go/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration with secrets masked",
				Action: configShow,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	// Nested sections read poorly as a table.
	format := flags.Output
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, config.Sanitize(GetConfig(c)))
}
