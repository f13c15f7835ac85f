package bill

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	// postgres driver
	_ "github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS bills (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	type          TEXT NOT NULL,
	name          TEXT NOT NULL,
	amount        NUMERIC NOT NULL,
	date          TEXT NOT NULL,
	vat           TEXT NOT NULL,
	pct           INTEGER NOT NULL,
	status        TEXT NOT NULL,
	commentary    TEXT NOT NULL DEFAULT '',
	comment_admin TEXT NOT NULL DEFAULT '',
	file_url      TEXT NOT NULL DEFAULT '',
	file_name     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bills_email_idx ON bills (email);
CREATE TABLE IF NOT EXISTS bill_files (
	key          TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_type TEXT NOT NULL,
	email        TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);`

var billColumns = []string{
	"id", "email", "type", "name", "amount", "date", "vat", "pct", "status",
	"commentary", "comment_admin", "file_url", "file_name", "created_at", "updated_at",
}

// PostgresDB implements the DB interface on top of PostgreSQL
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB connects to dsn and creates the schema when missing
func NewPostgresDB(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresDB{db: db}, nil
}

func saveBillQuery(bill *Bill) sq.InsertBuilder {
	return psql.Insert("bills").
		Columns(billColumns...).
		Values(bill.ID, bill.Email, bill.Type, bill.Name, bill.Amount, bill.Date, bill.VAT, bill.PCT,
			string(bill.Status), bill.Commentary, bill.CommentAdmin, bill.FileURL, bill.FileName,
			bill.CreatedAt, bill.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type, name = EXCLUDED.name, amount = EXCLUDED.amount,
			date = EXCLUDED.date, vat = EXCLUDED.vat, pct = EXCLUDED.pct, status = EXCLUDED.status,
			commentary = EXCLUDED.commentary, comment_admin = EXCLUDED.comment_admin,
			file_url = EXCLUDED.file_url, file_name = EXCLUDED.file_name, updated_at = EXCLUDED.updated_at`)
}

func listBillsQuery(email string) sq.SelectBuilder {
	query := psql.Select(billColumns...).From("bills").OrderBy("created_at")
	if email != "" {
		query = query.Where(sq.Eq{"email": email})
	}
	return query
}

// SaveBill upserts a bill
func (p *PostgresDB) SaveBill(bill *Bill) error {
	if _, err := saveBillQuery(bill).RunWith(p.db).Exec(); err != nil {
		return fmt.Errorf("saving bill: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*Bill, error) {
	var bill Bill
	var status string
	err := row.Scan(&bill.ID, &bill.Email, &bill.Type, &bill.Name, &bill.Amount, &bill.Date, &bill.VAT,
		&bill.PCT, &status, &bill.Commentary, &bill.CommentAdmin, &bill.FileURL, &bill.FileName,
		&bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return nil, err
	}
	bill.Status = Status(status)
	return &bill, nil
}

// GetBill retrieves a bill by ID
func (p *PostgresDB) GetBill(id string) (*Bill, error) {
	row := psql.Select(billColumns...).From("bills").Where(sq.Eq{"id": id}).RunWith(p.db).QueryRow()
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns the bills of one employee ordered by creation
func (p *PostgresDB) ListBills(email string) ([]*Bill, error) {
	rows, err := listBillsQuery(email).RunWith(p.db).Query()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	defer rows.Close()

	bills := make([]*Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// SaveFile records a receipt file
func (p *PostgresDB) SaveFile(file *FileRecord) error {
	_, err := psql.Insert("bill_files").
		Columns("key", "name", "path", "content_type", "email", "created_at").
		Values(file.Key, file.Name, file.Path, file.ContentType, file.Email, file.CreatedAt).
		RunWith(p.db).Exec()
	if err != nil {
		return fmt.Errorf("saving file record: %w", err)
	}
	return nil
}

// GetFile retrieves a receipt file record
func (p *PostgresDB) GetFile(key string) (*FileRecord, error) {
	var file FileRecord
	err := psql.Select("key", "name", "path", "content_type", "email", "created_at").
		From("bill_files").
		Where(sq.Eq{"key": key}).
		RunWith(p.db).QueryRow().
		Scan(&file.Key, &file.Name, &file.Path, &file.ContentType, &file.Email, &file.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file record: %w", err)
	}
	return &file, nil
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	return p.db.Close()
}
