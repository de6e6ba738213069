package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/core/gate"
)

// FetchCommand returns the fetch command.
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Read a resource scoped to the signed-in customer",
		ArgsUsage: "RESOURCE",
		Description: "Requests GET /api/RESOURCE/{cust_id} with the session token.\n" +
			"RESOURCE is a lowercase name such as orders or invoices.",
		Action: fetch,
	}
}

func fetch(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrMissingArgument.WithDetails("usage: fetch RESOURCE")
	}

	rt, err := EnsureRuntime(c)
	if err != nil {
		return err
	}

	s := rt.Store.Snapshot()
	if gate.Decide(s) != gate.RouteShell {
		return domain.ErrNotAuthenticated
	}

	data, err := rt.Client.Fetch(c.Context, c.Args().First(), s)
	if err != nil {
		return err
	}
	return render(c, data)
}
