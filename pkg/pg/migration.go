package pg

import (
	_ "github.com/lib/pq"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	goose.SetLogger(logger.GetLogger())
	if err = goose.Up(db, dir); err != nil {
		return errors.Wrapf(err, "migrate up from %s", dir)
	}

	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("migrations applied", "version", version, "dir", dir)
	}
	return nil
}
