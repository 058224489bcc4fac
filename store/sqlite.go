package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// registers the "sqlite3" driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/nixxel-company-limited/booth-printer/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS voters (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL DEFAULT '',
	voter_id                TEXT NOT NULL DEFAULT '',
	serial_number           TEXT NOT NULL DEFAULT '',
	booth_number            TEXT NOT NULL DEFAULT '',
	gender                  TEXT NOT NULL DEFAULT '',
	age                     TEXT NOT NULL DEFAULT '',
	polling_station_address TEXT NOT NULL DEFAULT '',
	phone                   TEXT NOT NULL DEFAULT '',
	whatsapp                TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS family_links (
	voter_id  TEXT NOT NULL,
	member_id TEXT NOT NULL,
	position  INTEGER NOT NULL,
	PRIMARY KEY (voter_id, member_id)
);
`

const voterColumns = `v.id, v.name, v.voter_id, v.serial_number, v.booth_number,
	v.gender, v.age, v.polling_station_address, v.phone, v.whatsapp`

// SQLite is the Store backed by a SQLite database file.
type SQLite struct {
	Db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens the database at path and creates the tables if needed.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// an in-memory database lives only as long as its connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLite{Db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.Db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVoter(row scanner) (models.Voter, error) {
	var v models.Voter
	err := row.Scan(&v.ID, &v.Name, &v.VoterID, &v.SerialNumber, &v.BoothNumber,
		&v.Gender, &v.Age, &v.PollingStationAddress, &v.Phone, &v.WhatsApp)
	return v, err
}

func (s *SQLite) Voter(ctx context.Context, id string) (models.Voter, error) {
	row := s.Db.QueryRowContext(ctx, "SELECT "+voterColumns+" FROM voters v WHERE v.id = ?", id)
	v, err := scanVoter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Voter{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Voter{}, fmt.Errorf("query voter %s: %w", id, err)
	}

	rows, err := s.Db.QueryContext(ctx,
		"SELECT member_id FROM family_links WHERE voter_id = ? ORDER BY position", id)
	if err != nil {
		return models.Voter{}, fmt.Errorf("query family links %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return models.Voter{}, fmt.Errorf("scan family link: %w", err)
		}
		v.FamilyIDs = append(v.FamilyIDs, member)
	}
	return v, rows.Err()
}

func (s *SQLite) Family(ctx context.Context, id string) ([]models.Voter, error) {
	rows, err := s.Db.QueryContext(ctx, "SELECT "+voterColumns+`
		FROM family_links f JOIN voters v ON v.id = f.member_id
		WHERE f.voter_id = ? ORDER BY f.position`, id)
	if err != nil {
		return nil, fmt.Errorf("query family %s: %w", id, err)
	}
	defer rows.Close()

	var members []models.Voter
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, v)
	}
	return members, rows.Err()
}

var contactColumns = map[models.ContactField]string{
	models.ContactPhone:    "phone",
	models.ContactWhatsApp: "whatsapp",
}

func (s *SQLite) SetContact(ctx context.Context, id string, field models.ContactField, value string) error {
	column, ok := contactColumns[field]
	if !ok {
		return fmt.Errorf("unknown contact field %q", field)
	}

	res, err := s.Db.ExecContext(ctx, "UPDATE voters SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("update %s for %s: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s for %s: %w", column, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Put inserts or replaces a voter record. FamilyIDs are ignored; use Link.
func (s *SQLite) Put(ctx context.Context, v models.Voter) error {
	_, err := s.Db.ExecContext(ctx, `
		INSERT INTO voters (id, name, voter_id, serial_number, booth_number,
			gender, age, polling_station_address, phone, whatsapp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			voter_id = excluded.voter_id,
			serial_number = excluded.serial_number,
			booth_number = excluded.booth_number,
			gender = excluded.gender,
			age = excluded.age,
			polling_station_address = excluded.polling_station_address,
			phone = excluded.phone,
			whatsapp = excluded.whatsapp`,
		v.ID, v.Name, v.VoterID, v.SerialNumber, v.BoothNumber,
		v.Gender, v.Age, v.PollingStationAddress, v.Phone, v.WhatsApp)
	if err != nil {
		return fmt.Errorf("put voter %s: %w", v.ID, err)
	}
	return nil
}

// Link appends members to id's family, keeping existing links first.
func (s *SQLite) Link(ctx context.Context, id string, members ...string) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("link %s: %w", id, err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM family_links WHERE voter_id = ?", id).Scan(&next); err != nil {
		return fmt.Errorf("link %s: %w", id, err)
	}

	for _, m := range members {
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO family_links (voter_id, member_id, position) VALUES (?, ?, ?)", id, m, next)
		if err != nil {
			return fmt.Errorf("link %s -> %s: %w", id, m, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}
	return tx.Commit()
}
