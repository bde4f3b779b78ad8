package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/port"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLStore is the Ledger Store over database/sql. It keeps no copies of
// rows; every call reads the database.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
	now     func() time.Time
}

var _ port.LedgerRepository = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:      sqlx.NewDb(db, d.driverName),
		dialect: d,
		logger:  logger.With(zap.String("component", "store"), zap.String("driver", d.name)),
		now:     time.Now,
	}
}

func (s *SQLStore) Driver() string { return s.dialect.name }

func (s *SQLStore) DB() *sql.DB { return s.db.DB }

func (s *SQLStore) Close() error { return s.db.Close() }

// Rebind converts a query written with ? placeholders to the driver's bindvar style.
func (s *SQLStore) Rebind(query string) string { return s.db.Rebind(query) }

// Migrate creates the storage and sales tables when they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for i, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storeErr(fmt.Sprintf("migrate step %d", i+1), err)
		}
	}
	s.logger.Info("schema ready", zap.Int("statements", len(s.dialect.schema)))
	return nil
}

// WithTx acquires a transaction for fn and guarantees it is finished on every
// exit path, including panics.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx port.LedgerTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(&sqlTx{tx: tx, dialect: s.dialect, now: s.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storeErr("commit tx", err)
	}
	return nil
}

func (s *SQLStore) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	var rows []itemRow
	q := `SELECT ` + itemColumns + ` FROM storage ORDER BY item_name ASC`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, storeErr("list inventory", err)
	}

	items := make([]domain.InventoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toDomain())
	}
	return items, nil
}

func (s *SQLStore) StockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel
	q := `SELECT item_name, quantity FROM storage WHERE quantity > 0 ORDER BY quantity DESC, item_name ASC`

	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, storeErr("query stock levels", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var l domain.StockLevel
		if err := rows.Scan(&l.Name, &l.Quantity); err != nil {
			return nil, storeErr("scan stock level", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate stock levels", err)
	}
	if levels == nil {
		levels = []domain.StockLevel{}
	}
	return levels, nil
}

func (s *SQLStore) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var rows []saleRow
	q := `SELECT ` + saleColumns + ` FROM sales ORDER BY id DESC`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, storeErr("list sales", err)
	}

	sales := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, r.toDomain())
	}
	return sales, nil
}

func (s *SQLStore) Stats(ctx context.Context) (port.StoreStats, error) {
	stats := port.StoreStats{Driver: s.dialect.name}

	if err := s.db.PingContext(ctx); err != nil {
		return stats, storeErr("ping", err)
	}
	if err := s.db.GetContext(ctx, &stats.Version, s.dialect.versionQuery); err != nil {
		return stats, storeErr("server version", err)
	}
	if err := s.db.GetContext(ctx, &stats.Items, `SELECT COUNT(*) FROM storage`); err != nil {
		return stats, storeErr("count storage", err)
	}
	if err := s.db.GetContext(ctx, &stats.Sales, `SELECT COUNT(*) FROM sales`); err != nil {
		return stats, storeErr("count sales", err)
	}

	var latest saleRow
	err := s.db.GetContext(ctx, &latest, `SELECT `+saleColumns+` FROM sales ORDER BY id DESC LIMIT 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, storeErr("latest sale", err)
	default:
		sale := latest.toDomain()
		stats.LatestSale = &sale
	}
	return stats, nil
}

// sqlTx implements port.LedgerTx on one open transaction.
type sqlTx struct {
	tx      *sqlx.Tx
	dialect dialect
	now     func() time.Time
}

func (t *sqlTx) q(query string) string {
	return t.tx.Rebind(query)
}

func (t *sqlTx) LockItem(ctx context.Context, ref domain.ItemRef) (*domain.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM storage WHERE `
	var arg any
	if ref.ByID() {
		query += `item_id = ?`
		arg = ref.ID
	} else {
		query += t.dialect.namePredicate
		arg = ref.Name
	}
	query += ` LIMIT 1` + t.dialect.lockClause

	var row itemRow
	err := t.tx.GetContext(ctx, &row, t.q(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ItemNotFoundError{Ref: ref}
	}
	if err != nil {
		return nil, storeErr("lock item", err)
	}

	item := row.toDomain()
	return &item, nil
}

func (t *sqlTx) FindItemByName(ctx context.Context, name string) (*domain.InventoryItem, error) {
	var row itemRow
	query := `SELECT ` + itemColumns + ` FROM storage WHERE ` + t.dialect.namePredicate + ` LIMIT 1`
	err := t.tx.GetContext(ctx, &row, t.q(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ItemNotFoundError{Ref: domain.ItemByName(name)}
	}
	if err != nil {
		return nil, storeErr("find item", err)
	}

	item := row.toDomain()
	return &item, nil
}

func (t *sqlTx) getItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	var row itemRow
	err := t.tx.GetContext(ctx, &row, t.q(`SELECT `+itemColumns+` FROM storage WHERE item_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ItemNotFoundError{Ref: domain.ItemByID(id)}
	}
	if err != nil {
		return nil, storeErr("read item", err)
	}

	item := row.toDomain()
	return &item, nil
}

func (t *sqlTx) InsertItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	now := t.now()
	id, err := t.insert(ctx, `
		INSERT INTO storage (item_name, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, "item_id",
		item.Name, item.Quantity, item.Price, t.dialect.timeArg(now), t.dialect.timeArg(now),
	)
	if err != nil {
		if t.dialect.uniqueViolation(err) {
			return nil, fmt.Errorf("%w: item %q already exists", domain.ErrConflict, item.Name)
		}
		return nil, storeErr("insert item", err)
	}
	return t.getItem(ctx, id)
}

func (t *sqlTx) UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	result, err := t.tx.ExecContext(ctx, t.q(`
		UPDATE storage
		SET item_name = ?, quantity = ?, price = ?, updated_at = ?
		WHERE item_id = ?`),
		item.Name, item.Quantity, item.Price, t.dialect.timeArg(t.now()), item.ID,
	)
	if err != nil {
		if t.dialect.uniqueViolation(err) {
			return nil, fmt.Errorf("%w: item %q already exists", domain.ErrConflict, item.Name)
		}
		return nil, storeErr("update item", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, &domain.ItemNotFoundError{Ref: domain.ItemByID(item.ID)}
	}
	return t.getItem(ctx, item.ID)
}

func (t *sqlTx) DeleteItem(ctx context.Context, itemID int64) error {
	result, err := t.tx.ExecContext(ctx, t.q(`DELETE FROM storage WHERE item_id = ?`), itemID)
	if err != nil {
		return storeErr("delete item", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &domain.ItemNotFoundError{Ref: domain.ItemByID(itemID)}
	}
	return nil
}

func (t *sqlTx) DecrementStock(ctx context.Context, itemID int64, quantity int) (int, error) {
	result, err := t.tx.ExecContext(ctx, t.q(`
		UPDATE storage
		SET quantity = quantity - ?, updated_at = ?
		WHERE item_id = ? AND quantity >= ?`),
		quantity, t.dialect.timeArg(t.now()), itemID, quantity,
	)
	if err != nil {
		return 0, storeErr("decrement stock", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: stock of item %d changed under lock", domain.ErrInsufficientStock, itemID)
	}

	var remaining int
	if err := t.tx.GetContext(ctx, &remaining, t.q(`SELECT quantity FROM storage WHERE item_id = ?`), itemID); err != nil {
		return 0, storeErr("read stock", err)
	}
	return remaining, nil
}

func (t *sqlTx) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = t.now()
	}
	id, err := t.insert(ctx, `
		INSERT INTO sales (item_name, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, "id",
		sale.ItemName, sale.Quantity, sale.Price, t.dialect.timeArg(createdAt), t.dialect.timeArg(createdAt),
	)
	if err != nil {
		return nil, storeErr("insert sale", err)
	}

	var row saleRow
	if err := t.tx.GetContext(ctx, &row, t.q(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), id); err != nil {
		return nil, storeErr("read sale", err)
	}
	inserted := row.toDomain()
	return &inserted, nil
}

func (t *sqlTx) DeleteSale(ctx context.Context, saleID int64) (*domain.Sale, error) {
	var row saleRow
	err := t.tx.GetContext(ctx, &row, t.q(`SELECT `+saleColumns+` FROM sales WHERE id = ?`+t.dialect.lockClause), saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no sale with id %d", domain.ErrNotFound, saleID)
	}
	if err != nil {
		return nil, storeErr("read sale", err)
	}

	if _, err := t.tx.ExecContext(ctx, t.q(`DELETE FROM sales WHERE id = ?`), saleID); err != nil {
		return nil, storeErr("delete sale", err)
	}
	deleted := row.toDomain()
	return &deleted, nil
}

func (t *sqlTx) DeleteAllSales(ctx context.Context) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, storeErr("delete all sales", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("delete all sales", err)
	}
	return n, nil
}

func (t *sqlTx) CountSalesFor(ctx context.Context, itemName string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM sales WHERE ` + t.dialect.namePredicate
	if err := t.tx.GetContext(ctx, &n, t.q(query), itemName); err != nil {
		return 0, storeErr("count sales", err)
	}
	return n, nil
}

func (t *sqlTx) SalesTotals(ctx context.Context) (domain.SalesTotals, error) {
	if !t.dialect.exactSums {
		return t.sumSalesInGo(ctx)
	}

	var row totalsRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total_sales,
			COALESCE(SUM(quantity), 0) AS total_items_sold,
			COALESCE(SUM(quantity * price), 0) AS total_revenue
		FROM sales`)
	if err != nil {
		return domain.SalesTotals{}, storeErr("sales totals", err)
	}
	return domain.SalesTotals{
		TotalSales:     row.TotalSales,
		TotalItemsSold: row.TotalItemsSold,
		TotalRevenue:   row.TotalRevenue,
	}, nil
}

// sumSalesInGo totals the sales log with decimal arithmetic for stores whose
// SUM runs in floating point (sqlite keeps NUMERIC prices as REAL).
func (t *sqlTx) sumSalesInGo(ctx context.Context) (domain.SalesTotals, error) {
	rows, err := t.tx.QueryxContext(ctx, `SELECT quantity, price FROM sales`)
	if err != nil {
		return domain.SalesTotals{}, storeErr("sales totals", err)
	}
	defer func() { _ = rows.Close() }()

	totals := domain.SalesTotals{TotalRevenue: decimal.Zero}
	for rows.Next() {
		var (
			qty   int64
			price decimal.Decimal
		)
		if err := rows.Scan(&qty, &price); err != nil {
			return domain.SalesTotals{}, storeErr("scan sales totals", err)
		}
		totals.TotalSales++
		totals.TotalItemsSold += qty
		totals.TotalRevenue = totals.TotalRevenue.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	if err := rows.Err(); err != nil {
		return domain.SalesTotals{}, storeErr("iterate sales totals", err)
	}
	return totals, nil
}

// insert runs an INSERT and returns the generated key named idColumn.
func (t *sqlTx) insert(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	if t.dialect.returningID {
		var id int64
		err := t.tx.QueryRowxContext(ctx, t.q(query+` RETURNING `+idColumn), args...).Scan(&id)
		return id, err
	}

	result, err := t.tx.ExecContext(ctx, t.q(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}
