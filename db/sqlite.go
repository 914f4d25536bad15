// Package db 提供 K 线与指标快照的 SQLite 持久化
package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storkagent/market"
)

// DB wraps the SQLite connection. Constructed once at startup and handed
// to whoever needs history persistence.
type DB struct {
	conn *sql.DB
}

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS klines (
        id INTEGER PRIMARY KEY,
        code VARCHAR(20),
        open REAL,
        high REAL,
        low REAL,
        close REAL,
        volume INTEGER,
        date DATETIME,
        UNIQUE(code, date)
    );
    CREATE TABLE IF NOT EXISTS indicators (
        id INTEGER PRIMARY KEY,
        code VARCHAR(20),
        ma5 REAL,
        ma20 REAL,
        rsi REAL,
        macd REAL,
        date DATETIME,
        UNIQUE(code, date)
    );
    `
	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// SaveKLines upserts a batch of K-lines in one transaction.
func (d *DB) SaveKLines(klines []market.KLine) error {
	if len(klines) == 0 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
        INSERT OR REPLACE INTO klines (code, open, high, low, close, volume, date)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, k := range klines {
		if _, err := stmt.Exec(k.Code, k.Open, k.High, k.Low, k.Close, k.Volume, k.Date); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QueryKLines returns up to limit K-lines for a code, oldest first.
func (d *DB) QueryKLines(code string, limit int) ([]market.KLine, error) {
	rows, err := d.conn.Query(`
        SELECT code, open, high, low, close, volume, date
        FROM (
            SELECT * FROM klines WHERE code = ? ORDER BY date DESC LIMIT ?
        ) ORDER BY date ASC`, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var klines []market.KLine
	for rows.Next() {
		var k market.KLine
		if err := rows.Scan(&k.Code, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.Date); err != nil {
			return nil, err
		}
		klines = append(klines, k)
	}
	return klines, rows.Err()
}

// SaveIndicators stores an indicator snapshot for a code and date.
func (d *DB) SaveIndicators(code string, date time.Time, snap market.IndicatorSnapshot) error {
	_, err := d.conn.Exec(`
        INSERT OR REPLACE INTO indicators (code, ma5, ma20, rsi, macd, date)
        VALUES (?, ?, ?, ?, ?, ?)`,
		code, snap.MA5, snap.MA20, snap.RSI, snap.MACD, date)
	return err
}

// LatestIndicators returns the most recent indicator snapshot for a code.
func (d *DB) LatestIndicators(code string) (*market.IndicatorSnapshot, time.Time, error) {
	var snap market.IndicatorSnapshot
	var date time.Time
	err := d.conn.QueryRow(`
        SELECT ma5, ma20, rsi, macd, date
        FROM indicators
        WHERE code = ?
        ORDER BY date DESC
        LIMIT 1`, code).Scan(&snap.MA5, &snap.MA20, &snap.RSI, &snap.MACD, &date)
	if err != nil {
		return nil, time.Time{}, err
	}
	return &snap, date, nil
}
