package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/canteen/storage/database"
)

var gooseRunFunc = database.RunGoose // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, down, status, redo, version...) over the embedded migrations",
		// goose arguments such as "down-to -1" are passed through untouched
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db.DB, cli.conf.Database.Engine, args[0], args[1:]...)
}
