// Package sqlstore keeps records in SQLite or Postgres tables, one table per
// collection.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"uk.co.dudmesh.todo/internal/store"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

//go:embed migrations/*.sql
var migrations embed.FS

type sqlStore struct {
	db     *sqlx.DB
	tables store.Tables
}

// New connects to dsn and brings the schema up to date. Table names are fixed
// by the migrations.
func New(ctx context.Context, driver, dsn string) (*sqlStore, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &sqlStore{db, store.DefaultTables()}
	if err := s.migrate(ctx, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite only tolerates a single writer
		db.SetMaxOpenConns(1)
	}

	return s, nil
}

func dialectFor(driver string) (goose.Dialect, error) {
	switch driver {
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	case DriverPostgres:
		return goose.DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported sql driver: %s", driver)
}

func (s *sqlStore) migrate(ctx context.Context, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	for _, r := range results {
		log.Infof("applied migration %s", r.Source.Path)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) FetchOne(ctx context.Context, c store.Collection, key string, projection []string, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	query := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		columnList(projection), quote(table), quote(store.KeyAttribute)))
	log.Debugf("fetch parameters: %s [%s]", query, key)

	err = s.db.GetContext(ctx, out, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("fetching %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) FetchMany(ctx context.Context, c store.Collection, q store.Query, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf(`SELECT %s FROM %s`, columnList(q.Projection), quote(table)))
	args := []any{}
	if !q.IsScan() {
		idx, err := store.LookupIndex(c, q.Index.Name)
		if err != nil {
			return err
		}
		sb.WriteString(fmt.Sprintf(` WHERE %s = ?`, quote(idx.Attribute)))
		args = append(args, q.Value)
	}
	sb.WriteString(fmt.Sprintf(` ORDER BY %s`, quote(store.KeyAttribute)))

	query := s.db.Rebind(sb.String())
	log.Debugf("fetch parameters: %s %v", query, args)

	if err := s.db.SelectContext(ctx, out, query, args...); err != nil {
		return fmt.Errorf("fetching %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) Upsert(ctx context.Context, c store.Collection, record any) error {
	query, err := s.insertStatement(c, record, true)
	if err != nil {
		return err
	}
	log.Debugf("put parameters: %s", query)

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("putting %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) Create(ctx context.Context, c store.Collection, record any) error {
	query, err := s.insertStatement(c, record, false)
	if err != nil {
		return err
	}
	log.Debugf("put parameters: %s", query)

	res, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c, err)
	}
	if rows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if rows != 1 {
		return store.ErrConflict
	}
	return nil
}

func (s *sqlStore) PartialUpdate(ctx context.Context, c store.Collection, key string, set store.Assignments, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return s.FetchOne(ctx, c, key, nil, out)
	}

	assignments := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, name := range set.Names() {
		assignments = append(assignments, fmt.Sprintf(`%s = ?`, quote(name)))
		value := set[name]
		if value == nil {
			// cleared attributes fall back to the column default
			value = ""
		}
		args = append(args, value)
	}
	args = append(args, key)

	query := s.db.Rebind(fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? RETURNING *`,
		quote(table), strings.Join(assignments, ", "), quote(store.KeyAttribute)))
	log.Debugf("update parameters: %s %v", query, args)

	err = s.db.GetContext(ctx, out, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("updating %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, c store.Collection, key string) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, quote(table), quote(store.KeyAttribute)))
	log.Debugf("delete parameters: %s [%s]", query, key)

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("deleting %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) insertStatement(c store.Collection, record any, replace bool) (string, error) {
	table, err := s.tables.Name(c)
	if err != nil {
		return "", err
	}
	columns, err := columnsOf(record)
	if err != nil {
		return "", err
	}

	quoted := make([]string, len(columns))
	named := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, col := range columns {
		quoted[i] = quote(col)
		named[i] = ":" + col
		if col != store.KeyAttribute {
			updates = append(updates, fmt.Sprintf(`%s = excluded.%s`, quote(col), quote(col)))
		}
	}

	conflict := `DO NOTHING`
	if replace && len(updates) > 0 {
		conflict = `DO UPDATE SET ` + strings.Join(updates, ", ")
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s`,
		quote(table), strings.Join(quoted, ", "), strings.Join(named, ", "),
		quote(store.KeyAttribute), conflict), nil
}

// columnsOf lists the db tagged fields of a record struct.
func columnsOf(record any) ([]string, error) {
	v := reflect.Indirect(reflect.ValueOf(record))
	if v.Kind() != reflect.Struct {
		return nil, store.ErrInvalidDestination
	}
	t := v.Type()
	columns := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("db"), ",")
		if name == "" || name == "-" {
			continue
		}
		columns = append(columns, name)
	}
	return columns, nil
}

func columnList(projection []string) string {
	if len(projection) == 0 {
		return "*"
	}
	quoted := make([]string, len(projection))
	for i, name := range projection {
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", ")
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
