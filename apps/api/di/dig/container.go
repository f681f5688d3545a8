package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/inspectorat/apps/api/echo"
	"github.com/trezcool/inspectorat/core"
	emailsvc "github.com/trezcool/inspectorat/services/email"
	logsvc "github.com/trezcool/inspectorat/services/logger"
	"github.com/trezcool/inspectorat/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newRootLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	logger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger, nil
}

func newLogger(root *logsvc.RollbarLogger) core.Logger { return root.Named("api") }

func newDBLogger(root *logsvc.RollbarLogger) core.Logger { return root.Named("db") }

func newDB(conf *core.Config, loggerParam DBLoggerParam) core.DocumentStore {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.Timeout)
	defer cancel()

	db, err := database.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	echoapi.InitValidators(validate, translator)
	return validate
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newRootLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(echoapi.NewServices))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
