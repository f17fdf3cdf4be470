// Package storage keeps a local SQL snapshot of the backend data and the
// report job table. SQLite (modernc) and PostgreSQL (lib/pq) are supported
// with the same queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finwise/internal/core"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = core.ErrNotFound

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// SyncState describes the last snapshot refresh of a user.
type SyncState struct {
	User     string
	SyncedAt time.Time
	Records  int
	Rejected int
}

func sqlDriverName(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Open connects to the database, runs migrations and returns the store.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(driver, dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriverName(driver), connString(driver, dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, driver: driver, now: time.Now}, nil
}

func connString(driver, dsn string) string {
	if driver != DriverSQLite || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReplaceRecords swaps the stored records of kind for user with records.
func (s *Store) ReplaceRecords(ctx context.Context, user string, kind core.Kind, records []core.Record) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	syncedAt := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE user_id = ? AND kind = ?`), user, kind.String()); err != nil {
			return fmt.Errorf("delete %s records: %w", kind, err)
		}
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO records
			(user_id, kind, id, amount, date, category_id, category_name, note, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			var catID, catName sql.NullString
			if r.Category != nil {
				catID = sql.NullString{String: r.Category.ID, Valid: true}
				catName = sql.NullString{String: r.Category.Name, Valid: r.Category.Name != ""}
			}
			if _, err := stmt.ExecContext(ctx, user, kind.String(), r.ID, r.Amount.Amount, r.Date.String(), catID, catName, r.Note, syncedAt); err != nil {
				return fmt.Errorf("insert %s record %s: %w", kind, r.ID, err)
			}
		}
		return nil
	})
}

// Records returns the stored records of kind for user ordered by date.
func (s *Store) Records(ctx context.Context, user string, kind core.Kind) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, amount, date, category_id, category_name, note
		FROM records WHERE user_id = ? AND kind = ? ORDER BY date, id`), user, kind.String())
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", kind, err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		var (
			r              core.Record
			amount         decimal.Decimal
			date           string
			catID, catName sql.NullString
		)
		if err := rows.Scan(&r.ID, &amount, &date, &catID, &catName, &r.Note); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", kind, err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored %s record %s: %w", kind, r.ID, err)
		}
		r.Kind = kind
		r.Amount = core.NewMoney(amount)
		r.Date = d
		if catID.Valid {
			r.Category = &core.CategoryRef{ID: catID.String, Name: catName.String}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceCategories swaps the stored categories of user.
func (s *Store) ReplaceCategories(ctx context.Context, user string, categories []core.Category) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM categories WHERE user_id = ?`), user); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		for _, c := range categories {
			created := ""
			if !c.CreatedAt.IsZero() {
				created = c.CreatedAt.UTC().Format(timeLayout)
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO categories (user_id, id, name, created_at) VALUES (?, ?, ?, ?)`),
				user, c.ID, c.Name, created); err != nil {
				return fmt.Errorf("insert category %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) Categories(ctx context.Context, user string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, name, created_at FROM categories WHERE user_id = ? ORDER BY name`), user)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var (
			c       core.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if created != "" {
			c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceGoals swaps the stored savings goals of user.
func (s *Store) ReplaceGoals(ctx context.Context, user string, goals []core.SavingsGoal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM savings_goals WHERE user_id = ?`), user); err != nil {
			return fmt.Errorf("delete goals: %w", err)
		}
		for _, g := range goals {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO savings_goals
				(user_id, id, title, target_amount, current_amount, image_ref) VALUES (?, ?, ?, ?, ?, ?)`),
				user, g.ID, g.Title, g.TargetAmount.Amount, g.CurrentAmount.Amount, g.ImageRef); err != nil {
				return fmt.Errorf("insert goal %s: %w", g.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) Goals(ctx context.Context, user string) ([]core.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, title, target_amount, current_amount, image_ref
		FROM savings_goals WHERE user_id = ? ORDER BY title, id`), user)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	out := []core.SavingsGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(row scanner) (core.SavingsGoal, error) {
	var (
		g               core.SavingsGoal
		target, current decimal.Decimal
	)
	if err := row.Scan(&g.ID, &g.Title, &target, &current, &g.ImageRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, ErrNotFound
		}
		return g, fmt.Errorf("scan goal: %w", err)
	}
	g.TargetAmount = core.NewMoney(target)
	g.CurrentAmount = core.NewMoney(current)
	return g, nil
}

// AddToGoal increments the current amount of a goal and returns the updated
// goal.
func (s *Store) AddToGoal(ctx context.Context, user, goalID string, amount core.Money) (core.SavingsGoal, error) {
	var updated core.SavingsGoal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGoal(tx.QueryRowContext(ctx, s.rebind(`SELECT id, title, target_amount, current_amount, image_ref
			FROM savings_goals WHERE user_id = ? AND id = ?`), user, goalID))
		if err != nil {
			return err
		}
		g.CurrentAmount = g.CurrentAmount.Add(amount)
		if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE savings_goals SET current_amount = ? WHERE user_id = ? AND id = ?`),
			g.CurrentAmount.Amount, user, goalID); err != nil {
			return fmt.Errorf("update goal %s: %w", goalID, err)
		}
		updated = g
		return nil
	})
	return updated, err
}

// RecordSync stores the outcome of a snapshot refresh.
func (s *Store) RecordSync(ctx context.Context, user string, records, rejected int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sync_state (user_id, synced_at, records, rejected)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET synced_at = excluded.synced_at, records = excluded.records, rejected = excluded.rejected`),
		user, s.timestamp(), records, rejected)
	if err != nil {
		return fmt.Errorf("record sync state: %w", err)
	}
	return nil
}

// LastSync returns the last refresh of user or ErrNotFound.
func (s *Store) LastSync(ctx context.Context, user string) (SyncState, error) {
	st := SyncState{User: user}
	var at string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT synced_at, records, rejected FROM sync_state WHERE user_id = ?`), user).
		Scan(&at, &st.Records, &st.Rejected)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, fmt.Errorf("query sync state: %w", err)
	}
	st.SyncedAt, _ = time.Parse(time.RFC3339Nano, at)
	return st, nil
}
