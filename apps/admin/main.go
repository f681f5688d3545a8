package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
	emailsvc "github.com/trezcool/inspectorat/services/email"
	logsvc "github.com/trezcool/inspectorat/services/logger"
	"github.com/trezcool/inspectorat/storage/database"
)

func main() {
	conf := core.NewConfig()
	root, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer root.Sync()
	logger := root.Named("admin")

	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.Timeout)
	db, err := database.Open(ctx, conf, logger)
	cancel()
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	cli := commandLine{
		conf:   conf,
		logger: logger,
		db:     db,
		users:  user.NewService(db, emailsvc.New(conf, logger), conf),
		catalogs: catalogs{
			provinces:     catalog.NewService(catalog.ProvinceDefinition, db, validate),
			denominations: catalog.NewService(catalog.DenominationDefinition, db, validate),
			disciplines:   catalog.NewService(catalog.DisciplineDefinition, db, validate),
		},
		openSQL:  database.OpenSQL,
		validate: validate,
	}
	runErr := cli.run(os.Args)

	ctx, cancel = context.WithTimeout(context.Background(), conf.Database.Timeout)
	defer cancel()
	if err := db.Close(ctx); err != nil {
		logger.Error("closing database", err)
	}

	if runErr != nil {
		if runErr != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", runErr)
		}
		root.Sync()
		os.Exit(1)
	}
}
