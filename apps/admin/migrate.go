package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openSQL(cli.conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			cli.logger.Error("closing database", errors.Wrap(err, "closing database"))
		}
	}()
	return migrateFunc(db, args[0], args[1:]...)
}
