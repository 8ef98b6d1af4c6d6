package main

import (
	"context"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Globals

		Migrate MigrateCmd `cmd:"" help:"Apply database migrations"`
		Issue   IssueCmd   `cmd:"" help:"Issue invite tokens"`
		Quota   QuotaCmd   `cmd:"" help:"Inspect or change the registration quota"`
		Token   TokenCmd   `cmd:"" help:"Sign a caller assertion for the command API"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("embygate-admin"),
		kong.Description("Administrative tasks for the embygate store."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&cli.Globals)
	cmd.FatalIfErrorf(err)
}
