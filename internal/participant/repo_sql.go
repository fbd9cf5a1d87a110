package participant

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dialect captures the few differences between the SQL backends.
type Dialect struct {
	Name   string
	schema string
	// numbered placeholders ($1, $2...) instead of ?
	numbered bool
}

var (
	Postgres = Dialect{
		Name:     "postgres",
		numbered: true,
		schema: `
		CREATE TABLE IF NOT EXISTS participants (
			id           UUID PRIMARY KEY,
			name         TEXT NOT NULL,
			email        TEXT NOT NULL,
			phone        TEXT NOT NULL,
			filename     TEXT NOT NULL,
			data         BYTEA,
			content_type TEXT NOT NULL DEFAULT '',
			image_id     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'Not Entered Yet'
				CHECK (status IN ('Not Entered Yet', 'In Campus', 'Outside Campus')),
			qr_code      TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_participants_status ON participants(status);
		`,
	}

	SQLite = Dialect{
		Name: "sqlite",
		schema: `
		CREATE TABLE IF NOT EXISTS participants (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			email        TEXT NOT NULL,
			phone        TEXT NOT NULL,
			filename     TEXT NOT NULL,
			data         BLOB,
			content_type TEXT NOT NULL DEFAULT '',
			image_id     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'Not Entered Yet'
				CHECK (status IN ('Not Entered Yet', 'In Campus', 'Outside Campus')),
			qr_code      TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_participants_status ON participants(status);
		`,
	}
)

// rebind rewrites ? placeholders into $n for dialects that need it.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const participantColumns = `id, name, email, phone, filename, data, content_type, image_id, status, qr_code, created_at`

// SQLRepository persists participants in Postgres or SQLite through
// database/sql. Ids are UUIDs.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository creates a repo.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// EnsureSchema creates the participants table when it does not exist.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.dialect.schema)
	return err
}

func parseSQLID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrMalformedID
	}
	return parsed.String(), nil
}

func (r *SQLRepository) Insert(ctx context.Context, p *Participant) error {
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO participants (`+participantColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`), p.ID, p.Name, p.Email, p.Phone, p.Filename, p.Data, p.ContentType, p.ImageID, string(p.Status), p.QRCode, p.CreatedAt)
	if err != nil {
		p.ID = ""
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (Participant, error) {
	var p Participant
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Filename, &p.Data, &p.ContentType, &p.ImageID, &status, &p.QRCode, &p.CreatedAt); err != nil {
		return Participant{}, err
	}
	p.Status = Status(status)
	if len(p.Data) == 0 {
		p.Data = nil
	}
	return p, nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*Participant, error) {
	key, err := parseSQLID(id)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+participantColumns+` FROM participants WHERE id = ?`), key)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *SQLRepository) update(ctx context.Context, query, id string, value any) error {
	key, err := parseSQLID(id)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(query), value, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.update(ctx, `UPDATE participants SET status = ? WHERE id = ?`, id, string(status))
}

func (r *SQLRepository) SetQRCode(ctx context.Context, id, qrCode string) error {
	return r.update(ctx, `UPDATE participants SET qr_code = ? WHERE id = ?`, id, qrCode)
}

func (r *SQLRepository) List(ctx context.Context) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *SQLRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM participants WHERE status = ?`), string(status)).Scan(&n)
	return n, err
}

func (r *SQLRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
