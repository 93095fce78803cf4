package iac

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register driver
)

// Journal records every delivery run and every tile acknowledged within it
// so an interrupted run can be resumed.
type Journal struct {
	db *sql.DB
}

// Run is one row of the journal.
type Run struct {
	ID        string
	Image     string
	Source    string
	Divisions int
	BlockSize int
	Encoding  string
	Started   time.Time
	Finished  time.Time
	Error     string
	Tiles     int
}

// Complete reports whether every tile of the run was delivered.
func (r Run) Complete() bool {
	return !r.Finished.IsZero() && r.Error == ""
}

// OpenJournal opens, creating if necessary, the journal in file.
func OpenJournal(file string) (*Journal, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS run (id TEXT PRIMARY KEY NOT NULL, image TEXT NOT NULL, source TEXT NOT NULL, divisions INTEGER NOT NULL, block_size INTEGER NOT NULL, encoding TEXT NOT NULL, started INTEGER NOT NULL, finished INTEGER, error TEXT)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS tile (run_id TEXT NOT NULL, tile INTEGER NOT NULL, bytes INTEGER NOT NULL, blocks INTEGER NOT NULL, delivered INTEGER NOT NULL, PRIMARY KEY(run_id, tile), FOREIGN KEY(run_id) REFERENCES run(id))"); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db: db,
	}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun records the start of a run and returns its ID. encoding
// identifies how tiles are encoded, so runs with different settings never
// resume each other.
func (j *Journal) StartRun(image, source string, divisions, blockSize int, encoding string) (string, error) {
	id := uuid.NewString()
	if _, err := j.db.Exec("INSERT INTO run (id, image, source, divisions, block_size, encoding, started) VALUES (?, ?, ?, ?, ?, ?, ?)", id, image, source, divisions, blockSize, encoding, time.Now().UnixNano()); err != nil {
		return "", err
	}
	return id, nil
}

// TileDelivered records that every block of a tile was acknowledged.
func (j *Journal) TileDelivered(run string, tile byte, bytes, blocks int) error {
	if _, err := j.db.Exec("INSERT OR REPLACE INTO tile (run_id, tile, bytes, blocks, delivered) VALUES (?, ?, ?, ?, ?)", run, tile, bytes, blocks, time.Now().UnixNano()); err != nil {
		return err
	}
	return nil
}

// FinishRun marks the run as finished, successfully if err is nil.
func (j *Journal) FinishRun(run string, err error) error {
	var msg sql.NullString
	if err != nil {
		msg.String = err.Error()
		msg.Valid = true
	}
	if _, err := j.db.Exec("UPDATE run SET finished = ?, error = ? WHERE id = ?", time.Now().UnixNano(), msg, run); err != nil {
		return err
	}
	return nil
}

// Pending returns the tiles already delivered by the most recent run for
// the same image, geometry and encoding, provided that run did not complete. A nil
// map means there is nothing to resume.
func (j *Journal) Pending(image string, divisions, blockSize int, encoding string) (map[byte]bool, error) {
	var id string
	var finished sql.NullInt64
	var msg sql.NullString
	switch err := j.db.QueryRow("SELECT id, finished, error FROM run WHERE image = ? AND divisions = ? AND block_size = ? AND encoding = ? ORDER BY started DESC LIMIT 1", image, divisions, blockSize, encoding).Scan(&id, &finished, &msg); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		if finished.Valid && !msg.Valid {
			return nil, nil
		}
	default:
		return nil, err
	}

	rows, err := j.db.Query("SELECT tile FROM tile WHERE run_id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	delivered := make(map[byte]bool)
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		delivered[byte(t)] = true
	}
	return delivered, rows.Err()
}

// Runs returns up to limit runs, most recent first.
func (j *Journal) Runs(limit int) ([]Run, error) {
	rows, err := j.db.Query("SELECT r.id, r.image, r.source, r.divisions, r.block_size, r.encoding, r.started, r.finished, r.error, COUNT(t.tile) FROM run AS r LEFT JOIN tile AS t ON t.run_id = r.id GROUP BY r.id ORDER BY r.started DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		var msg sql.NullString
		if err := rows.Scan(&r.ID, &r.Image, &r.Source, &r.Divisions, &r.BlockSize, &r.Encoding, &started, &finished, &msg, &r.Tiles); err != nil {
			return nil, err
		}
		r.Started = time.Unix(0, started)
		if finished.Valid {
			r.Finished = time.Unix(0, finished.Int64)
		}
		r.Error = msg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
