package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"expenses/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get and Update when no row has the given id.
var ErrNotFound = fmt.Errorf("storage: %w", core.ErrNotFound)

const expenseColumns = `id, title, COALESCE(CAST(amount AS REAL), 0), category, date, notes`

// SQLiteRepository is the data access layer for the expenses table.
// Every operation runs on its own connection, released before returning.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (creating if needed) the store at dbPath and
// brings its schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

// Path returns the store file location.
func (r *SQLiteRepository) Path() string { return r.path }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withConn acquires a dedicated connection for fn and always releases it.
func (r *SQLiteRepository) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// Ping checks the store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.withConn(ctx, func(c *sql.Conn) error {
		return c.PingContext(ctx)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanExpense is the single mapping from a stored row to an Expense.
func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e        core.Expense
		category sql.NullString
		date     sql.NullString
		notes    sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Title, &e.Amount, &category, &date, &notes); err != nil {
		return core.Expense{}, err
	}
	e.Category = category.String
	e.Date = date.String
	e.Notes = notes.String
	return e, nil
}

// ListAll returns every expense, most recent date first. Rows sharing a
// date are ordered newest insertion first.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	err := r.withConn(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY date DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return fmt.Errorf("scan expense: %w", err)
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// Get returns the expense with the given id or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := r.withConn(ctx, func(c *sql.Conn) error {
		var err error
		e, err = scanExpense(c.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// Insert stores a validated submission and returns the id assigned to it.
func (r *SQLiteRepository) Insert(ctx context.Context, s core.Submission) (int64, error) {
	var id int64
	err := r.withConn(ctx, func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx,
			`INSERT INTO expenses (title, amount, category, date, notes) VALUES (?, ?, ?, ?, ?)`,
			s.Title, s.Amount, s.Category, s.Date, s.Notes)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", s.Title,
		"amount", s.Amount,
		"date", s.Date)

	return id, nil
}

// Update replaces every field of the expense except its id.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, s core.Submission) error {
	var affected int64
	err := r.withConn(ctx, func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx,
			`UPDATE expenses SET title = ?, amount = ?, category = ?, date = ?, notes = ? WHERE id = ?`,
			s.Title, s.Amount, s.Category, s.Date, s.Notes, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update expense %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the expense. Deleting an id that does not exist is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	err := r.withConn(ctx, func(c *sql.Conn) error {
		_, err := c.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// Count returns the number of stored expenses.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.withConn(ctx, func(c *sql.Conn) error {
		return c.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}
