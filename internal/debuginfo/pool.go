// Package debuginfo implements the optional collaborator spec.md §3 allows
// each node an opaque debug-info reference into: a DSN-selected
// database/sql pool, grounded on the teacher's internal/database
// driver-registration-by-scheme pattern, generalized from ad hoc security
// probing into a structured node-id-to-source-span store.
package debuginfo

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Span is the original source location and text a parsed node came from.
type Span struct {
	File      string
	Line, Col int
	EndLine   int
	EndCol    int
	Snippet   string
}

// Pool persists node-id-to-Span mappings for one module build. A nil *Pool
// is a valid, inert no-op: every method on it tolerates a nil receiver, so
// callers that never configure a pool pay no cost and need no nil checks
// of their own beyond what Go already does for method calls on nil.
type Pool struct {
	db      *sql.DB
	driver  string
	buildID uuid.UUID
}

// placeholder returns the nth (1-based) bind-parameter marker in the
// syntax p's driver expects: lib/pq and go-mssqldb don't accept the
// sqlite/mysql "?" marker.
func (p *Pool) placeholder(n int) string {
	switch p.driver {
	case "postgres":
		return fmt.Sprintf("$%d", n)
	case "sqlserver":
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// driverFor maps a DSN's scheme to the database/sql driver name registered
// for it, matching the teacher's per-scheme dispatch in Connect.
func driverFor(dsn string) (driver, rest string, ok bool) {
	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		return "", "", false
	}
	switch scheme {
	case "sqlite":
		return "sqlite", rest, true
	case "mysql":
		return "mysql", rest, true
	case "postgres", "postgresql":
		return "postgres", dsn, true
	case "sqlserver", "mssql":
		return "sqlserver", rest, true
	default:
		return "", "", false
	}
}

// Open connects to the pool database named by dsn (a scheme-prefixed
// connection string: sqlite://, mysql://, postgres://, or sqlserver://)
// and ensures its schema exists. buildID identifies this compilation run,
// minted fresh by the caller for each *ir.Module.
func Open(dsn string, buildID uuid.UUID) (*Pool, error) {
	driver, connStr, ok := driverFor(dsn)
	if !ok {
		return nil, fmt.Errorf("debuginfo: unrecognized DSN scheme in %q", dsn)
	}
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("debuginfo: ping %s: %w", driver, err)
	}
	p := &Pool{db: db, driver: driver, buildID: buildID}
	if err := p.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pool) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS node_spans (
			build_id   TEXT NOT NULL,
			node_id    BIGINT NOT NULL,
			file       TEXT NOT NULL,
			line       INTEGER NOT NULL,
			col        INTEGER NOT NULL,
			end_line   INTEGER NOT NULL,
			end_col    INTEGER NOT NULL,
			snippet    TEXT,
			PRIMARY KEY (build_id, node_id)
		)`)
	return err
}

// Put records nodeID's origin span for this pool's build. Safe to call on
// a nil *Pool (a no-op).
func (p *Pool) Put(nodeID uint64, span Span) error {
	if p == nil {
		return nil
	}
	ph := make([]any, 8)
	for i := range ph {
		ph[i] = p.placeholder(i + 1)
	}
	query := fmt.Sprintf(
		`INSERT INTO node_spans (build_id, node_id, file, line, col, end_line, end_col, snippet)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`, ph...)
	_, err := p.db.Exec(query,
		p.buildID.String(), nodeID, span.File, span.Line, span.Col, span.EndLine, span.EndCol, span.Snippet)
	return err
}

// Get recovers nodeID's recorded span, if any. Safe to call on a nil
// *Pool, which always reports ok=false.
func (p *Pool) Get(nodeID uint64) (span Span, ok bool) {
	if p == nil {
		return Span{}, false
	}
	query := fmt.Sprintf(
		`SELECT file, line, col, end_line, end_col, snippet FROM node_spans
		 WHERE build_id = %s AND node_id = %s`, p.placeholder(1), p.placeholder(2))
	row := p.db.QueryRow(query, p.buildID.String(), nodeID)
	if err := row.Scan(&span.File, &span.Line, &span.Col, &span.EndLine, &span.EndCol, &span.Snippet); err != nil {
		return Span{}, false
	}
	return span, true
}

// Close releases the pool's database connection. Safe to call on a nil
// *Pool.
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	return p.db.Close()
}

// BuildID returns the UUID this pool's spans are scoped to.
func (p *Pool) BuildID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.buildID
}
