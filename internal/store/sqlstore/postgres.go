// Package sqlstore implements store.Store on PostgreSQL for deployments
// whose user records live in relational tables.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/dbx"
	"github.com/dmitrijs2005/credmigrator/internal/store"
	"github.com/dmitrijs2005/credmigrator/internal/store/sqlstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Columns names the columns the migrator reads and writes.
type Columns struct {
	Key        string
	Identifier string
	Credential string
}

func (c Columns) withDefaults() Columns {
	if c.Key == "" {
		c.Key = "id"
	}
	if c.Identifier == "" {
		c.Identifier = "email"
	}
	if c.Credential == "" {
		c.Credential = "password"
	}
	return c
}

type Store struct {
	db      *sql.DB
	columns Columns
	closer  store.CloseOnce
}

// Open connects through the pgx driver, pings the server and applies the
// ledger migrations.
func Open(ctx context.Context, dsn string, columns Columns, timeout time.Duration) (*Store, error) {
	if dsn == "" {
		return nil, common.ErrMissingConnectionString
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, columns)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func New(db *sql.DB, columns Columns) *Store {
	return &Store{db: db, columns: columns.withDefaults()}
}

func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Collection(name string) (store.Collection, error) {
	if s.closer.Closed() {
		return nil, common.ErrAlreadyClosed
	}
	return NewCollection(s.db, name, s.columns)
}

func (s *Store) Ledger() store.Ledger {
	return NewLedger(s.db)
}

func (s *Store) Close(ctx context.Context) error {
	return s.closer.Do(s.db.Close)
}

type Collection struct {
	db   dbx.DBTX
	name string

	firstPage string
	nextPage  string
	update    string
	updateNil string
}

// NewCollection prepares the statements for table name. Table and column
// names must be plain identifiers.
func NewCollection(db dbx.DBTX, name string, columns Columns) (*Collection, error) {
	columns = columns.withDefaults()

	table, err := dbx.QuoteIdent(name)
	if err != nil {
		return nil, err
	}
	key, err := dbx.QuoteIdent(columns.Key)
	if err != nil {
		return nil, err
	}
	ident, err := dbx.QuoteIdent(columns.Identifier)
	if err != nil {
		return nil, err
	}
	cred, err := dbx.QuoteIdent(columns.Credential)
	if err != nil {
		return nil, err
	}

	selectCols := fmt.Sprintf("SELECT %s, %s, %s FROM %s", key, ident, cred, table)

	return &Collection{
		db:        db,
		name:      name,
		firstPage: fmt.Sprintf("%s ORDER BY %s LIMIT $1", selectCols, key),
		nextPage:  fmt.Sprintf("%s WHERE %s > $1 ORDER BY %s LIMIT $2", selectCols, key, key),
		update:    fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s = $3", table, cred, key, cred),
		updateNil: fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s IS NULL", table, cred, key, cred),
	}, nil
}

func (c *Collection) Name() string {
	return c.name
}

// Each walks the table in primary-key order, one keyset page at a time.
func (c *Collection) Each(ctx context.Context, batchSize int, fn func(store.Record) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var last any
	for {
		page, err := c.page(ctx, last, batchSize)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}
		if len(page) < batchSize {
			return nil
		}
		last = page[len(page)-1].Key
	}
}

func (c *Collection) page(ctx context.Context, after any, limit int) ([]store.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = c.db.QueryContext(ctx, c.firstPage, limit)
	} else {
		rows, err = c.db.QueryContext(ctx, c.nextPage, after, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	page := make([]store.Record, 0, limit)
	for rows.Next() {
		var (
			key        any
			identifier sql.NullString
			credential sql.NullString
		)
		if err := rows.Scan(&key, &identifier, &credential); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		page = append(page, store.Record{
			Key:           key,
			Identifier:    identifier.String,
			Credential:    credential.String,
			HasCredential: credential.Valid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return page, nil
}

func (c *Collection) UpdateCredential(ctx context.Context, key any, old string, hadOld bool, hashed string) error {
	var (
		res sql.Result
		err error
	)
	if hadOld {
		res, err = c.db.ExecContext(ctx, c.update, hashed, key, old)
	} else {
		res, err = c.db.ExecContext(ctx, c.updateNil, hashed, key)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record stores the run row and its failed records in one transaction.
func (l *Ledger) Record(ctx context.Context, run store.Run) error {
	return dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`INSERT INTO credential_migration_runs
			   (run_id, target, collection, total_scanned, total_updated, already_hashed,
			    total_skipped, total_failed, aborted, error, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`

		var id int64
		err := tx.QueryRowContext(ctx, query,
			run.RunID, run.Target, run.Collection, run.TotalScanned, run.TotalUpdated, run.AlreadyHashed,
			run.TotalSkipped, run.TotalFailed, run.Aborted, run.Error, run.StartedAt, run.FinishedAt,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}

		for _, rec := range run.FailedRecords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO credential_migration_failures (run_ref, record) VALUES ($1, $2)`,
				id, rec); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}
