// Package users persists per-user state: language, timezone, quiet hours,
// pre-event leads, pending confirmations, lists, events and reminder history.
// All per-chat conversational state lives here so handlers never need
// package-level mutable maps.
package users

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	phone_hash   TEXT PRIMARY KEY,
	language     TEXT NOT NULL DEFAULT '',
	timezone     TEXT NOT NULL DEFAULT '',
	quiet_start  TEXT NOT NULL DEFAULT '',
	quiet_end    TEXT NOT NULL DEFAULT '',
	lead_seconds INTEGER NOT NULL DEFAULT 900,
	extra_leads  TEXT NOT NULL DEFAULT '[]',
	updated_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pending_confirmations (
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	args       TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (channel, chat_id)
);
CREATE TABLE IF NOT EXISTS lists (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	name    TEXT NOT NULL,
	UNIQUE (channel, chat_id, name)
);
CREATE TABLE IF NOT EXISTS list_items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	list_id    INTEGER NOT NULL REFERENCES lists(id),
	content    TEXT NOT NULL,
	done       INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	start_ms   INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS reminder_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	phone_hash TEXT NOT NULL,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user_kind ON reminder_history(phone_hash, kind, id);
`

// historyCap is the retained entries per (user, kind); oldest beyond the cap
// are pruned on insert.
const historyCap = 20

// History kinds.
const (
	HistoryScheduled = "scheduled"
	HistoryDelivered = "delivered"
)

// Pending-confirmation actions. A chat has at most one pending action; a new
// prompt replaces it and any terminal reply clears it.
const (
	ActionCompleteJob   = "complete_job"
	ActionRescheduleJob = "reschedule_job"
	ActionVagueTime     = "vague_time"
	ActionRestartOne    = "restart_1"
	ActionRestartTwo    = "restart_2"
)

// User holds per-user preferences. Zero values mean "unset"; language and
// timezone resolution happen at the call site.
type User struct {
	PhoneHash   string
	Language    string
	Timezone    string
	QuietStart  string // "HH:MM", empty when no quiet window
	QuietEnd    string
	LeadSeconds int   // default pre-event lead
	ExtraLeads  []int // up to 3 additional leads, seconds
}

// PendingConfirmation is the single in-flight prompt for a chat.
type PendingConfirmation struct {
	Action    string
	Args      map[string]string
	CreatedAt time.Time
}

// ListItem is one entry of a named list.
type ListItem struct {
	ID      int64
	Content string
	Done    bool
}

// Event is a calendar entry imported from an ICS attachment or created by
// the event tool.
type Event struct {
	ID      int64
	Title   string
	StartMS int64
}

// Store is the SQLite-backed user store. Single writer per process; SQLite
// serializes concurrent access itself.
type Store struct {
	db *sql.DB
}

// HashPhone derives the stable user identity from phone digits.
func HashPhone(digits string) string {
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init user store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// GetUser returns the stored preferences for the phone hash, or a default
// user when none exist yet.
func (s *Store) GetUser(phoneHash string) (User, error) {
	u := User{PhoneHash: phoneHash, LeadSeconds: 900}

	var extraJSON string
	err := s.db.QueryRow(
		`SELECT language, timezone, quiet_start, quiet_end, lead_seconds, extra_leads
		 FROM users WHERE phone_hash = ?`, phoneHash,
	).Scan(&u.Language, &u.Timezone, &u.QuietStart, &u.QuietEnd, &u.LeadSeconds, &extraJSON)
	if err == sql.ErrNoRows {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("get user: %w", err)
	}
	if err := json.Unmarshal([]byte(extraJSON), &u.ExtraLeads); err != nil {
		u.ExtraLeads = nil
	}
	return u, nil
}

// SaveUser upserts the full preference row.
func (s *Store) SaveUser(u User) error {
	if len(u.ExtraLeads) > 3 {
		u.ExtraLeads = u.ExtraLeads[:3]
	}
	extraJSON, _ := json.Marshal(u.ExtraLeads)
	if u.ExtraLeads == nil {
		extraJSON = []byte("[]")
	}

	_, err := s.db.Exec(
		`INSERT INTO users (phone_hash, language, timezone, quiet_start, quiet_end, lead_seconds, extra_leads, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(phone_hash) DO UPDATE SET
			language = excluded.language,
			timezone = excluded.timezone,
			quiet_start = excluded.quiet_start,
			quiet_end = excluded.quiet_end,
			lead_seconds = excluded.lead_seconds,
			extra_leads = excluded.extra_leads,
			updated_at = excluded.updated_at`,
		u.PhoneHash, u.Language, u.Timezone, u.QuietStart, u.QuietEnd,
		u.LeadSeconds, string(extraJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SetLanguage updates only the language preference.
func (s *Store) SetLanguage(phoneHash, lang string) error {
	u, err := s.GetUser(phoneHash)
	if err != nil {
		return err
	}
	u.Language = lang
	return s.SaveUser(u)
}

// SetTimezone updates only the timezone preference.
func (s *Store) SetTimezone(phoneHash, tz string) error {
	u, err := s.GetUser(phoneHash)
	if err != nil {
		return err
	}
	u.Timezone = tz
	return s.SaveUser(u)
}

// SetPending replaces the chat's pending confirmation.
func (s *Store) SetPending(channel, chatID string, p PendingConfirmation) error {
	args := p.Args
	if args == nil {
		args = map[string]string{}
	}
	argsJSON, _ := json.Marshal(args)

	_, err := s.db.Exec(
		`INSERT INTO pending_confirmations (channel, chat_id, action, args, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel, chat_id) DO UPDATE SET
			action = excluded.action,
			args = excluded.args,
			created_at = excluded.created_at`,
		channel, chatID, p.Action, string(argsJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set pending: %w", err)
	}
	return nil
}

// GetPending returns the chat's pending confirmation, if any.
func (s *Store) GetPending(channel, chatID string) (PendingConfirmation, bool, error) {
	var (
		p        PendingConfirmation
		argsJSON string
		created  int64
	)
	err := s.db.QueryRow(
		`SELECT action, args, created_at FROM pending_confirmations
		 WHERE channel = ? AND chat_id = ?`, channel, chatID,
	).Scan(&p.Action, &argsJSON, &created)
	if err == sql.ErrNoRows {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("get pending: %w", err)
	}
	p.CreatedAt = time.UnixMilli(created)
	if err := json.Unmarshal([]byte(argsJSON), &p.Args); err != nil {
		p.Args = map[string]string{}
	}
	return p, true, nil
}

// ClearPending removes the chat's pending confirmation.
func (s *Store) ClearPending(channel, chatID string) error {
	_, err := s.db.Exec(
		`DELETE FROM pending_confirmations WHERE channel = ? AND chat_id = ?`,
		channel, chatID,
	)
	if err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// AddListItem appends an item to the named list, creating the list on first
// use. Returns the item's 1-based position within the list.
func (s *Store) AddListItem(channel, chatID, listName, content string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO lists (channel, chat_id, name) VALUES (?, ?, ?)`,
		channel, chatID, listName,
	); err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}

	var listID int64
	if err := tx.QueryRow(
		`SELECT id FROM lists WHERE channel = ? AND chat_id = ? AND name = ?`,
		channel, chatID, listName,
	).Scan(&listID); err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO list_items (list_id, content, created_at) VALUES (?, ?, ?)`,
		listID, content, time.Now().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}

	var pos int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM list_items WHERE list_id = ?`, listID,
	).Scan(&pos); err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add list item: %w", err)
	}
	return pos, nil
}

// GetList returns the items of the named list in insertion order.
func (s *Store) GetList(channel, chatID, listName string) ([]ListItem, error) {
	rows, err := s.db.Query(
		`SELECT li.id, li.content, li.done
		 FROM list_items li JOIN lists l ON li.list_id = l.id
		 WHERE l.channel = ? AND l.chat_id = ? AND l.name = ?
		 ORDER BY li.id`,
		channel, chatID, listName,
	)
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		var done int
		if err := rows.Scan(&it.ID, &it.Content, &done); err != nil {
			return nil, fmt.Errorf("get list: %w", err)
		}
		it.Done = done != 0
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListNames returns the chat's list names.
func (s *Store) ListNames(channel, chatID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT name FROM lists WHERE channel = ? AND chat_id = ? ORDER BY name`,
		channel, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list names: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// MarkItemDone marks the n-th item (1-based, across the chat's named list)
// as done. Returns false when the position does not exist or belongs to
// another chat.
func (s *Store) MarkItemDone(channel, chatID, listName string, position int) (bool, error) {
	items, err := s.GetList(channel, chatID, listName)
	if err != nil {
		return false, err
	}
	if position < 1 || position > len(items) {
		return false, nil
	}

	res, err := s.db.Exec(
		`UPDATE list_items SET done = 1 WHERE id = ?`, items[position-1].ID,
	)
	if err != nil {
		return false, fmt.Errorf("mark done: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddEvent stores a calendar event for the chat.
func (s *Store) AddEvent(channel, chatID, title string, startMS int64) error {
	_, err := s.db.Exec(
		`INSERT INTO events (channel, chat_id, title, start_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		channel, chatID, title, startMS, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// ListEvents returns the chat's future events ordered by start time.
func (s *Store) ListEvents(channel, chatID string, after time.Time) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, title, start_ms FROM events
		 WHERE channel = ? AND chat_id = ? AND start_ms >= ?
		 ORDER BY start_ms`,
		channel, chatID, after.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.StartMS); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AddHistory appends a reminder-history entry and prunes beyond the per-kind
// cap in the same transaction.
func (s *Store) AddHistory(phoneHash, kind, message string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO reminder_history (phone_hash, kind, message, created_at)
		 VALUES (?, ?, ?, ?)`,
		phoneHash, kind, message, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM reminder_history
		 WHERE phone_hash = ? AND kind = ? AND id NOT IN (
			SELECT id FROM reminder_history
			WHERE phone_hash = ? AND kind = ?
			ORDER BY id DESC LIMIT ?
		 )`,
		phoneHash, kind, phoneHash, kind, historyCap,
	); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	return tx.Commit()
}

// GetHistory returns the newest entries first.
func (s *Store) GetHistory(phoneHash, kind string, limit int) ([]string, error) {
	if limit <= 0 || limit > historyCap {
		limit = historyCap
	}
	rows, err := s.db.Query(
		`SELECT message FROM reminder_history
		 WHERE phone_hash = ? AND kind = ?
		 ORDER BY id DESC LIMIT ?`,
		phoneHash, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var msgs []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
