// Package journal persists a durable trail of pipeline events for
// observability. The pipeline itself never reads from it; user traits and
// conversation state stay in memory only.
package journal

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yalor/ace/internal/bus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the event journal.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "ace.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// Entry is one journaled pipeline event.
type Entry struct {
	ID            int64
	Kind          bus.Kind
	SessionID     string
	OpportunityID string
	Payload       string
	CreatedAt     time.Time
}

// RecordEvent journals one bus event with its JSON payload.
func (s *Store) RecordEvent(e bus.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}

	sessionID, opportunityID := eventIdentity(e)
	_, err = s.db.Exec(
		"INSERT INTO events (kind, session_id, opportunity_id, payload) VALUES (?, ?, ?, ?)",
		string(e.EventKind()), sessionID, opportunityID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// eventIdentity pulls the correlation columns out of a payload so the
// journal can be queried without decoding JSON.
func eventIdentity(e bus.Event) (sessionID, opportunityID string) {
	switch ev := e.(type) {
	case bus.InputReceived:
		return ev.SessionID, ""
	case bus.IntentsDetected:
		return ev.SessionID, ""
	case bus.OpportunityIdentified:
		return ev.Opportunity.SessionID, ev.Opportunity.ID
	case bus.OpportunityObsoleted:
		return ev.SessionID, ev.OpportunityID
	case bus.OpportunityFannedOut:
		return ev.SessionID, ev.OpportunityID
	case bus.BidReceived:
		return ev.Bid.SessionID, ev.Bid.OpportunityID
	case bus.BidAccepted:
		return ev.SessionID, ev.OpportunityID
	case bus.OfferReady:
		return ev.Offer.SessionID, ev.Offer.OpportunityID
	default:
		return "", ""
	}
}

// Counts returns the number of journaled events per kind.
func (s *Store) Counts() (map[bus.Kind]int64, error) {
	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM events GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[bus.Kind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[bus.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Recent returns the newest entries of one kind, most recent first.
func (s *Store) Recent(kind bus.Kind, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, session_id, opportunity_id, payload, created_at
		 FROM events WHERE kind = ? ORDER BY id DESC LIMIT ?`,
		string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kindStr string
		if err := rows.Scan(&e.ID, &kindStr, &e.SessionID, &e.OpportunityID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.Kind = bus.Kind(kindStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentOffers decodes the newest OFFER_READY payloads, most recent first.
func (s *Store) RecentOffers(limit int) ([]bus.Offer, error) {
	entries, err := s.Recent(bus.KindOfferReady, limit)
	if err != nil {
		return nil, err
	}

	offers := make([]bus.Offer, 0, len(entries))
	for _, e := range entries {
		var ev bus.OfferReady
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			return nil, fmt.Errorf("decoding offer payload %d: %w", e.ID, err)
		}
		offers = append(offers, ev.Offer)
	}
	return offers, nil
}
