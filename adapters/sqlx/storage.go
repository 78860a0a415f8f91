package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	libsqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"drinktab/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite3"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"DRINKTAB_STORAGE_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"DRINKTAB_STORAGE_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DRINKTAB_STORAGE_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DRINKTAB_STORAGE_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DRINKTAB_STORAGE_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"DRINKTAB_STORAGE_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/drinktab?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/drinktab?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "./data/drinktab.db?_journal_mode=WAL&_busy_timeout=5000"
		// SQLite doesn't benefit from multiple connections
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Store implements the engine.Storage interface on top of a SQL database.
// Badges are stored as a JSON document in users.unlocked_badges.
type Store struct {
	db     *libsqlx.DB
	driver Driver
}

// New opens the database described by cfg and optionally migrates it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := libsqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing)
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) schema() []string {
	txID, stamp := "BIGSERIAL PRIMARY KEY", "TIMESTAMP"
	switch s.driver {
	case DriverMySQL:
		// plain TIMESTAMP truncates to whole seconds
		txID, stamp = "BIGINT AUTO_INCREMENT PRIMARY KEY", "TIMESTAMP(6)"
	case DriverSQLite:
		txID = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			unlocked_badges TEXT NULL,
			created_at ` + stamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			stock BIGINT NOT NULL DEFAULT 0,
			category VARCHAR(32) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id ` + txID + `,
			user_id VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			type VARCHAR(16) NOT NULL,
			item VARCHAR(64) NULL,
			created_at ` + stamp + ` NOT NULL
		)`,
	}
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Balance        int64          `db:"balance"`
	UnlockedBadges sql.NullString `db:"unlocked_badges"`
	CreatedAt      time.Time      `db:"created_at"`
}

type txRow struct {
	ID        int64          `db:"id"`
	UserID    string         `db:"user_id"`
	Amount    int64          `db:"amount"`
	Type      string         `db:"type"`
	Item      sql.NullString `db:"item"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r txRow) toCore() core.Transaction {
	return core.Transaction{
		ID:        r.ID,
		UserID:    core.UserID(r.UserID),
		Amount:    core.Money(r.Amount),
		Type:      core.TransactionType(r.Type),
		Item:      core.ItemID(r.Item.String),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func decodeBadges(raw sql.NullString) ([]core.Badge, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out []core.Badge
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBadgeState, err)
	}
	return out, nil
}

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func (s *Store) CreateUser(ctx context.Context, user core.User) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowxContext(ctx, s.q(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`), user.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", core.ErrUserExists, user.ID)
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO users (id, name, balance, unlocked_badges, created_at) VALUES (?, ?, ?, ?, ?)`),
		user.ID, user.Name, int64(user.Balance), "", user.Created.UTC()); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT id, name, balance, unlocked_badges, created_at FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("%w: %s", core.ErrUnknownUser, id)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	badges, err := decodeBadges(row.UnlockedBadges)
	if err != nil {
		return core.User{}, err
	}
	return core.User{ID: id, Name: row.Name, Balance: core.Money(row.Balance), Badges: badges, Created: row.CreatedAt.UTC()}, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	var ids []core.UserID
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

func (s *Store) Balance(ctx context.Context, user core.UserID) (core.Money, error) {
	var bal int64
	err := s.db.GetContext(ctx, &bal, s.q(`SELECT balance FROM users WHERE id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return core.Money(bal), nil
}

func (s *Store) Transactions(ctx context.Context, user core.UserID) ([]core.Transaction, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, s.q(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`), user); err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	var rows []txRow
	if err := s.db.SelectContext(ctx, &rows, s.q(`SELECT id, user_id, amount, type, item, created_at FROM transactions WHERE user_id = ? ORDER BY id`), user); err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) UnlockedBadges(ctx context.Context, user core.UserID) ([]core.Badge, error) {
	var raw sql.NullString
	err := s.db.GetContext(ctx, &raw, s.q(`SELECT unlocked_badges FROM users WHERE id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	return decodeBadges(raw)
}

func (s *Store) SaveUnlockedBadges(ctx context.Context, user core.UserID, badges []core.Badge) error {
	data, err := json.Marshal(badges)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET unlocked_badges = ? WHERE id = ?`), string(data), user)
	if err != nil {
		return fmt.Errorf("failed to save badges: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	return nil
}

func (s *Store) ItemCategories(ctx context.Context) (map[core.ItemID]core.Category, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT id, category FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to get item categories: %w", err)
	}
	defer rows.Close()
	out := map[core.ItemID]core.Category{}
	for rows.Next() {
		var id, cat string
		if err := rows.Scan(&id, &cat); err != nil {
			return nil, fmt.Errorf("failed to scan item category: %w", err)
		}
		out[core.ItemID(id)] = core.Category(cat)
	}
	return out, rows.Err()
}

func (s *Store) PutItem(ctx context.Context, item core.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowxContext(ctx, s.q(`SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`), item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check item: %w", err)
	}
	if exists {
		_, err = tx.ExecContext(ctx, s.q(`UPDATE items SET name = ?, price = ?, stock = ?, category = ? WHERE id = ?`),
			item.Name, int64(item.Price), item.Stock, string(item.Category), item.ID)
	} else {
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO items (id, name, price, stock, category) VALUES (?, ?, ?, ?, ?)`),
			item.ID, item.Name, int64(item.Price), item.Stock, string(item.Category))
	}
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.Item, error) {
	var it core.Item
	err := s.db.GetContext(ctx, &it, s.q(`SELECT id, name, price, stock, category FROM items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]core.Item, error) {
	var items []core.Item
	if err := s.db.SelectContext(ctx, &items, `SELECT id, name, price, stock, category FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *Store) Restock(ctx context.Context, id core.ItemID, delta int64) (core.Item, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE items SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`), delta, id, delta)
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to restock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetItem(ctx, id); err != nil {
			return core.Item{}, err
		}
		return core.Item{}, fmt.Errorf("%w: stock of %s would become negative", core.ErrInvalidAmount, id)
	}
	return s.GetItem(ctx, id)
}

// Commit writes balance, stock, the transaction row and badges in one SQL transaction.
func (s *Store) Commit(ctx context.Context, t core.Transaction, badges []core.Badge) (core.Transaction, core.Money, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if badges != nil {
		data, err := json.Marshal(badges)
		if err != nil {
			return core.Transaction{}, 0, err
		}
		res, err = tx.ExecContext(ctx, s.q(`UPDATE users SET balance = balance + ?, unlocked_badges = ? WHERE id = ?`), int64(t.Amount), string(data), t.UserID)
		if err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to update user: %w", err)
		}
	} else {
		res, err = tx.ExecContext(ctx, s.q(`UPDATE users SET balance = balance + ? WHERE id = ?`), int64(t.Amount), t.UserID)
		if err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to update user: %w", err)
		}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrUnknownUser, t.UserID)
	}

	var item sql.NullString
	if t.Type == core.TxPurchase {
		item = sql.NullString{String: string(t.Item), Valid: true}
		res, err := tx.ExecContext(ctx, s.q(`UPDATE items SET stock = stock - 1 WHERE id = ? AND stock > 0`), t.Item)
		if err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to update stock: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			var exists bool
			if err := tx.QueryRowxContext(ctx, s.q(`SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`), t.Item).Scan(&exists); err != nil {
				return core.Transaction{}, 0, fmt.Errorf("failed to check item: %w", err)
			}
			if !exists {
				return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrUnknownItem, t.Item)
			}
			return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrOutOfStock, t.Item)
		}
	}

	insert := `INSERT INTO transactions (user_id, amount, type, item, created_at) VALUES (?, ?, ?, ?, ?)`
	args := []any{t.UserID, int64(t.Amount), string(t.Type), item, t.CreatedAt.UTC()}
	if s.driver == DriverPostgres {
		if err := tx.QueryRowxContext(ctx, s.q(insert+` RETURNING id`), args...).Scan(&t.ID); err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to insert transaction: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, s.q(insert), args...)
		if err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to insert transaction: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return core.Transaction{}, 0, fmt.Errorf("failed to read transaction id: %w", err)
		}
	}

	var bal int64
	if err := tx.QueryRowxContext(ctx, s.q(`SELECT balance FROM users WHERE id = ?`), t.UserID).Scan(&bal); err != nil {
		return core.Transaction{}, 0, fmt.Errorf("failed to read balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return t, core.Money(bal), nil
}
