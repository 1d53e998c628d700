package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sambeau/scenery/pkg/scene/scene"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

// DevLog records every analysis the server runs in a database, so slow or
// failing documents can be inspected after the fact. SQLite is the default;
// a team can point several servers at one PostgreSQL or MySQL database.
type DevLog struct {
	mu          sync.RWMutex
	db          *sql.DB
	driver      string
	path        string // sqlite file, or the DSN for server databases
	maxSize     int64  // bytes
	truncatePct int    // share of rows dropped when maxSize is reached
	seq         uint64
}

// AnalysisRecord is one logged analysis.
type AnalysisRecord struct {
	ID         int64     `json:"id"`
	URI        string    `json:"uri"`
	Stage      string    `json:"stage"`
	DurationUs int64     `json:"duration_us"`
	Errors     int       `json:"errors"`
	FirstError string    `json:"first_error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// schemas creates the analyses table per driver
var schemas = map[string]string{
	"sqlite": `
		CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL,
			stage TEXT NOT NULL,
			duration_us INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			first_error TEXT NOT NULL DEFAULT '',
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_uri ON analyses(uri);`,
	"postgres": `
		CREATE TABLE IF NOT EXISTS analyses (
			id BIGSERIAL PRIMARY KEY,
			uri TEXT NOT NULL,
			stage TEXT NOT NULL,
			duration_us BIGINT NOT NULL,
			errors INTEGER NOT NULL,
			first_error TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_uri ON analyses(uri);`,
	"mysql": `
		CREATE TABLE IF NOT EXISTS analyses (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			uri VARCHAR(768) NOT NULL,
			stage VARCHAR(16) NOT NULL,
			duration_us BIGINT NOT NULL,
			errors INT NOT NULL,
			first_error TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_analyses_uri (uri)
		)`,
}

// NewDevLog opens (creating if needed) the SQLite database at path.
func NewDevLog(path string, maxSize int64, truncatePct int) (*DevLog, error) {
	return OpenDevLog("sqlite", path, maxSize, truncatePct)
}

// OpenDevLog opens a dev log on driver: "sqlite" with a file path, or
// "postgres" or "mysql" with a DSN.
func OpenDevLog(driver, source string, maxSize int64, truncatePct int) (*DevLog, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unknown devlog driver %q", driver)
	}

	dsn := source
	if driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(source), 0755); err != nil {
			return nil, fmt.Errorf("creating devlog directory: %w", err)
		}
		dsn = source + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening devlog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to devlog database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	dl := &DevLog{db: db, driver: driver, path: source, maxSize: maxSize, truncatePct: truncatePct}
	if dl.maxSize <= 0 {
		dl.maxSize = 10 * 1024 * 1024
	}
	if dl.truncatePct <= 0 {
		dl.truncatePct = 25
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating devlog schema: %w", err)
	}
	return dl, nil
}

// rebind rewrites ? placeholders for drivers that number them
func (dl *DevLog) rebind(query string) string {
	if dl.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (dl *DevLog) exec(query string, args ...any) (sql.Result, error) {
	return dl.db.Exec(dl.rebind(query), args...)
}

func (dl *DevLog) query(query string, args ...any) (*sql.Rows, error) {
	return dl.db.Query(dl.rebind(query), args...)
}

func (dl *DevLog) queryRow(query string, args ...any) *sql.Row {
	return dl.db.QueryRow(dl.rebind(query), args...)
}

// Record logs one analysis.
func (dl *DevLog) Record(a *scene.Analysis) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if err := dl.maybeAutoTruncate(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] devlog truncation failed: %v\n", err)
	}

	first := ""
	if len(a.Diagnostics) > 0 {
		first = a.Diagnostics[0].Code + " " + a.Diagnostics[0].Message
	}
	_, err := dl.exec(`
		INSERT INTO analyses (uri, stage, duration_us, errors, first_error)
		VALUES (?, ?, ?, ?, ?)
	`, a.URI, string(a.Result.Stage), a.Result.Duration.Microseconds(), len(a.Diagnostics), first)
	if err == nil {
		dl.seq++
	}
	return err
}

// Seq increments on every recorded analysis.
func (dl *DevLog) Seq() uint64 {
	dl.mu.RLock()
	defer dl.mu.RUnlock()
	return dl.seq
}

// Entries returns the newest records first, for one uri or all when uri is
// empty. A non-zero since drops older records.
func (dl *DevLog) Entries(uri string, since time.Time, limit int) ([]AnalysisRecord, error) {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	q := "SELECT id, uri, stage, duration_us, errors, first_error, timestamp FROM analyses WHERE 1 = 1"
	var args []any
	if uri != "" {
		q += " AND uri = ?"
		args = append(args, uri)
	}
	if !since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, dl.timeArg(since))
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := dl.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devlog: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var r AnalysisRecord
		var ts any
		if err := rows.Scan(&r.ID, &r.URI, &r.Stage, &r.DurationUs, &r.Errors, &r.FirstError, &ts); err != nil {
			return nil, fmt.Errorf("scanning devlog record: %w", err)
		}
		r.Timestamp = parseTimestamp(ts)
		records = append(records, r)
	}
	return records, rows.Err()
}

// timeArg binds t the way CURRENT_TIMESTAMP stores it: sqlite keeps UTC text
func (dl *DevLog) timeArg(t time.Time) any {
	if dl.driver == "sqlite" {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t.UTC()
}

// parseTimestamp accepts what the drivers hand back for a timestamp column
func parseTimestamp(v any) time.Time {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05Z", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Count returns the number of records for uri, or all when uri is empty.
func (dl *DevLog) Count(uri string) (int, error) {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	var count int
	var err error
	if uri == "" {
		err = dl.queryRow("SELECT COUNT(*) FROM analyses").Scan(&count)
	} else {
		err = dl.queryRow("SELECT COUNT(*) FROM analyses WHERE uri = ?", uri).Scan(&count)
	}
	return count, err
}

// Clear removes the records for uri, or all when uri is empty.
func (dl *DevLog) Clear(uri string) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	var err error
	if uri == "" {
		_, err = dl.exec("DELETE FROM analyses")
	} else {
		_, err = dl.exec("DELETE FROM analyses WHERE uri = ?", uri)
	}
	return err
}

// maybeAutoTruncate drops the oldest truncatePct of rows once the log
// reaches maxSize. Must be called with the lock held.
func (dl *DevLog) maybeAutoTruncate() error {
	size, err := dl.size()
	if err != nil {
		return err
	}
	if size < dl.maxSize {
		return nil
	}

	var total int
	if err := dl.queryRow("SELECT COUNT(*) FROM analyses").Scan(&total); err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	n := max(total*dl.truncatePct/100, 1)

	// MySQL has no LIMIT inside IN subqueries, so find the last id to drop.
	var cutoff int64
	if err := dl.queryRow("SELECT id FROM analyses ORDER BY id ASC LIMIT 1 OFFSET ?", n-1).Scan(&cutoff); err != nil {
		return fmt.Errorf("truncating devlog: %w", err)
	}
	if _, err := dl.exec("DELETE FROM analyses WHERE id <= ?", cutoff); err != nil {
		return fmt.Errorf("truncating devlog: %w", err)
	}
	return nil
}

// size is the on-disk size of a sqlite log and its write-ahead log, or an
// estimate of the stored text for server databases
func (dl *DevLog) size() (int64, error) {
	if dl.driver != "sqlite" {
		var total int64
		err := dl.queryRow(`
			SELECT COALESCE(SUM(LENGTH(uri) + LENGTH(first_error)), 0) + COUNT(*) * 48
			FROM analyses
		`).Scan(&total)
		return total, err
	}

	var total int64
	for _, p := range []string{dl.path, dl.path + "-wal"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database.
func (dl *DevLog) Close() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.db.Close()
}

// Path returns the database file path, or the DSN for server databases.
func (dl *DevLog) Path() string {
	return dl.path
}
