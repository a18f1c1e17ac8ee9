package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/quillhq/mailbrief/internal/task"
)

// Store persists tasks to SQLite for history and deduplication. The task id
// is the natural key; saving an existing id upserts.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
	log zerolog.Logger
}

func New(dbPath string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{
		db:  db,
		now: time.Now,
		log: log.With().Str("component", "store").Logger(),
	}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			source_email_id TEXT,
			source_subject TEXT,
			sender TEXT,
			sender_name TEXT,
			assignee TEXT,
			deadline TEXT,
			deadline_text TEXT,
			priority TEXT NOT NULL DEFAULT 'P1',
			urgency_score REAL NOT NULL DEFAULT 0.5,
			importance_score REAL NOT NULL DEFAULT 0.5,
			confidence REAL NOT NULL DEFAULT 0.8,
			status TEXT NOT NULL DEFAULT 'pending',
			tags TEXT NOT NULL DEFAULT '[]',
			dependencies TEXT NOT NULL DEFAULT '[]',
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline)`,
		`CREATE TABLE IF NOT EXISTS processing_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_date TEXT,
			emails_processed INTEGER,
			tasks_extracted INTEGER,
			p0_count INTEGER,
			p1_count INTEGER,
			p2_count INTEGER,
			p3_count INTEGER
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// SaveTask upserts one task.
func (s *Store) SaveTask(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(t)
}

func (s *Store) saveLocked(t *task.Task) error {
	var deadline any
	if t.Deadline != nil {
		deadline = t.Deadline.Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO tasks
		(id, title, description, source_email_id, source_subject, sender,
		 sender_name, assignee, deadline, deadline_text, priority,
		 urgency_score, importance_score, confidence, status, tags,
		 dependencies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.Title, t.Description, t.SourceEmailID, t.SourceSubject,
		t.Sender, t.SenderName, t.Assignee, deadline, t.DeadlineText,
		string(t.Priority), t.UrgencyScore, t.ImportanceScore, t.Confidence,
		string(t.Status), marshalList(t.Tags), marshalList(t.Dependencies),
		t.CreatedAt.Format(time.RFC3339), s.now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// SaveTasks upserts a batch.
func (s *Store) SaveTasks(tasks []*task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if err := s.saveLocked(t); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(tasks)).Msg("saved tasks")
	return nil
}

// Filter narrows GetTasks. Zero values mean "any".
type Filter struct {
	Priority task.Priority
	Status   task.Status
	Limit    int
}

// GetTasks reads tasks ordered by bucket rank then urgency descending.
// Malformed stored timestamps read back as absent instead of failing the
// whole query.
func (s *Store) GetTasks(f Filter) ([]*task.Task, error) {
	query := `
		SELECT id, title, description, source_email_id, source_subject, sender,
		       sender_name, assignee, deadline, deadline_text, priority,
		       urgency_score, importance_score, confidence, status, tags,
		       dependencies, created_at
		FROM tasks WHERE 1=1
	`
	args := []any{}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY CASE priority WHEN 'P0' THEN 0 WHEN 'P1' THEN 1 WHEN 'P2' THEN 2 ELSE 3 END, urgency_score DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	result := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

// GetTask reads a single task by id. Returns (nil, nil) when absent.
func (s *Store) GetTask(id string) (*task.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, title, description, source_email_id, source_subject, sender,
		       sender_name, assignee, deadline, deadline_text, priority,
		       urgency_score, importance_score, confidence, status, tags,
		       dependencies, created_at
		FROM tasks WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTask(rows)
}

// UpdateStatus transitions a task's lifecycle status.
func (s *Store) UpdateStatus(id string, status task.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// LogRun appends one processing-run entry with per-bucket counts.
func (s *Store) LogRun(emailsProcessed int, tasks []*task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[task.Priority]int{}
	for _, t := range tasks {
		counts[t.Priority]++
	}

	_, err := s.db.Exec(`
		INSERT INTO processing_log
		(run_date, emails_processed, tasks_extracted, p0_count, p1_count, p2_count, p3_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		s.now().Format(time.RFC3339), emailsProcessed, len(tasks),
		counts[task.PriorityDoNow], counts[task.PrioritySchedule],
		counts[task.PriorityDelegate], counts[task.PriorityArchive],
	)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

func scanTask(rows *sql.Rows) (*task.Task, error) {
	var (
		t            task.Task
		assignee     sql.NullString
		deadline     sql.NullString
		deadlineText sql.NullString
		priority     string
		status       string
		tagsJSON     string
		depsJSON     string
		createdAt    sql.NullString
	)
	if err := rows.Scan(
		&t.ID, &t.Title, &t.Description, &t.SourceEmailID, &t.SourceSubject,
		&t.Sender, &t.SenderName, &assignee, &deadline, &deadlineText,
		&priority, &t.UrgencyScore, &t.ImportanceScore, &t.Confidence,
		&status, &tagsJSON, &depsJSON, &createdAt,
	); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Assignee = assignee.String
	t.DeadlineText = deadlineText.String

	if deadline.Valid && deadline.String != "" {
		if parsed, ok := task.ParseTimestamp(deadline.String); ok {
			t.Deadline = &parsed
		}
	}
	if createdAt.Valid {
		if parsed, ok := task.ParseTimestamp(createdAt.String); ok {
			t.CreatedAt = parsed
		}
	}

	if p, err := task.ParsePriority(priority); err == nil {
		t.Priority = p
	} else {
		t.Priority = task.PrioritySchedule
	}
	if st, err := task.ParseStatus(status); err == nil {
		t.Status = st
	} else {
		t.Status = task.StatusPending
	}

	t.Tags = unmarshalList(tagsJSON)
	t.Dependencies = unmarshalList(depsJSON)
	return &t, nil
}

// marshalList serializes a string list, keeping empty lists as "[]" rather
// than null so they round-trip as empty.
func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalList(data string) []string {
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}
