package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vibarr/core/internal/vibarrerr"
)

// Store is the entity store: a thin wrapper over *gorm.DB that owns the
// schema and exposes read/write helpers per entity. It is grounded on the
// teacher's pkg/config.LoadOrDefault for the "probe, then open" sequencing,
// generalized to the spec's data model instead of a single settings file.
type Store struct {
	DB  *gorm.DB
	log zerolog.Logger
}

// Open connects to dsn, waiting with exponential backoff for the database
// to become reachable (spec §4.B: "the store retries connection/migration
// failures with exponential backoff for up to the startup grace period
// before the daemon reports unhealthy"), then runs AutoMigrate for every
// model in AllModels.
//
// The backoff envelope (~30 attempts spanning roughly 1s to 60s) mirrors
// the retry window other repos in the pack (amaumene-gomenarr,
// poiley-nebularr-operator) use in front of a GORM-backed store waiting on
// a sibling container to come up.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var db *gorm.DB
	probe := func() error {
		var err error
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0

	attempts := 0
	notify := func(err error, wait time.Duration) {
		attempts++
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("store: database not ready")
	}

	// 29 retries on top of the initial attempt gives 30 total tries across
	// the 1s-60s envelope (spec §4.B / Testable Property 10): the 30th
	// failure is fatal.
	withRetries := backoff.WithMaxRetries(bo, 29)
	if err := backoff.RetryNotify(probe, backoff.WithContext(withRetries, ctx), notify); err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.Fatal, err, "open entity store")
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.Fatal, err, "migrate entity store")
	}

	return &Store{DB: db, log: log.With().Str("component", "store").Logger()}, nil
}

// Ready reports whether the store currently answers a trivial query. Used
// by the daemon's health endpoint once startup has completed.
func (s *Store) Ready() bool {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}

// WithTx runs fn inside a database transaction, rolling back on any
// returned error. The download pipeline uses this to make a status read
// and the subsequent status write atomic (spec §4.E invariant: "a download
// never observably skips a state").
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(fn)
}
