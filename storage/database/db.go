package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/fs"
	inmemdb "github.com/trezcool/inspectorat/storage/database/inmem"
	"github.com/trezcool/inspectorat/storage/database/mongodb"
	"github.com/trezcool/inspectorat/storage/database/postgres"
)

// Open returns the document store selected by conf.Database.Engine.
// The postgres engine is created and migrated on the way.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (core.DocumentStore, error) {
	switch conf.Database.Engine {
	case core.EngineMemory:
		return inmemdb.Open(), nil
	case core.EnginePostgres:
		if err := CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := postgres.Open(conf)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db.SQL(), "up"); err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		return db, nil
	case core.EngineMongoDB, "":
		return mongodb.Open(ctx, conf, logger)
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

// OpenSQL opens a raw connection on the postgres database (migrations).
func OpenSQL(conf *core.Config) (*sql.DB, error) {
	if conf.Database.Engine != core.EnginePostgres {
		return nil, errors.Errorf("%s engine has no SQL schema", conf.Database.Engine)
	}
	db, err := sql.Open("postgres", conf.Database.URI)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = postgres.Ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

func createDB(db *sql.DB, name string) error {
	// check if DB exists
	var exists bool
	rows, err := db.Query("SELECT true FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return errors.Wrap(err, "checking DB")
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(name))); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the database named in conf.Database.URI, connecting through the
// `postgres` maintenance database of the same server.
func CreateIfNotExist(conf *core.Config) error {
	u, err := url.Parse(conf.Database.URI)
	if err != nil {
		return errors.Wrap(err, "parsing database uri")
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return errors.New("database uri has no database name")
	}
	u.Path = "/postgres"

	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = postgres.Ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	return createDB(db, name)
}

// Migrate runs a goose command ("up", "down", "status", "version", ...) against the
// embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, appfs.MigrationsDir, args...); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
