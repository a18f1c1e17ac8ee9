package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/mailbrief/internal/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "tasks.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedTask(id string, p task.Priority, urgency float64) *task.Task {
	deadline := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &task.Task{
		ID:              id,
		Title:           "Review contract " + id,
		Description:     "Full renewal terms",
		SourceEmailID:   "msg-" + id,
		SourceSubject:   "Contract renewal",
		Sender:          "legal@client.com",
		SenderName:      "Dana Reyes",
		Assignee:        "you@co.com",
		Deadline:        &deadline,
		DeadlineText:    "by Monday",
		Priority:        p,
		UrgencyScore:    urgency,
		ImportanceScore: 0.8,
		Confidence:      0.9,
		Status:          task.StatusPending,
		Tags:            []string{"legal", "vip:CEO"},
		Dependencies:    []string{"Collect signatures"},
		CreatedAt:       time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndGetTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	original := storedTask("t1", task.PriorityDoNow, 0.9)
	require.NoError(t, s.SaveTask(original))

	got, err := s.GetTask("t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, original.Description, got.Description)
	assert.Equal(t, original.SourceEmailID, got.SourceEmailID)
	assert.Equal(t, original.Sender, got.Sender)
	assert.Equal(t, original.SenderName, got.SenderName)
	assert.Equal(t, original.Assignee, got.Assignee)
	assert.Equal(t, original.DeadlineText, got.DeadlineText)
	assert.Equal(t, original.Priority, got.Priority)
	assert.Equal(t, original.UrgencyScore, got.UrgencyScore)
	assert.Equal(t, original.ImportanceScore, got.ImportanceScore)
	assert.Equal(t, original.Confidence, got.Confidence)
	assert.Equal(t, original.Status, got.Status)
	assert.Equal(t, original.Tags, got.Tags)
	assert.Equal(t, original.Dependencies, got.Dependencies)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(*original.Deadline))
	assert.True(t, got.CreatedAt.Equal(original.CreatedAt))
}

func TestNilListsRoundTripEmpty(t *testing.T) {
	s := newTestStore(t)
	tk := storedTask("t1", task.PrioritySchedule, 0.5)
	tk.Tags = nil
	tk.Dependencies = nil
	tk.Deadline = nil
	require.NoError(t, s.SaveTask(tk))

	got, err := s.GetTask("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{}, got.Tags)
	assert.Equal(t, []string{}, got.Dependencies)
	assert.Nil(t, got.Deadline)
}

func TestSaveTaskUpserts(t *testing.T) {
	s := newTestStore(t)
	tk := storedTask("t1", task.PrioritySchedule, 0.5)
	require.NoError(t, s.SaveTask(tk))

	tk.Title = "Revised title"
	tk.Priority = task.PriorityDoNow
	require.NoError(t, s.SaveTask(tk))

	all, err := s.GetTasks(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Revised title", all[0].Title)
	assert.Equal(t, task.PriorityDoNow, all[0].Priority)
}

func TestGetTaskAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetTask("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetTasksOrderingAndFilters(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveTasks([]*task.Task{
		storedTask("low", task.PriorityArchive, 0.1),
		storedTask("sched", task.PrioritySchedule, 0.4),
		storedTask("hot", task.PriorityDoNow, 0.95),
		storedTask("hot2", task.PriorityDoNow, 0.8),
	}))

	all, err := s.GetTasks(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "hot", all[0].ID)
	assert.Equal(t, "hot2", all[1].ID)
	assert.Equal(t, "sched", all[2].ID)
	assert.Equal(t, "low", all[3].ID)

	p0, err := s.GetTasks(Filter{Priority: task.PriorityDoNow})
	require.NoError(t, err)
	assert.Len(t, p0, 2)

	require.NoError(t, s.UpdateStatus("hot", task.StatusCompleted))
	pending, err := s.GetTasks(Filter{Status: task.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	limited, err := s.GetTasks(Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveTask(storedTask("t1", task.PrioritySchedule, 0.5)))
	require.NoError(t, s.UpdateStatus("t1", task.StatusDelegated))

	got, err := s.GetTask("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.StatusDelegated, got.Status)
}

func TestLogRun(t *testing.T) {
	s := newTestStore(t)
	tasks := []*task.Task{
		storedTask("a", task.PriorityDoNow, 0.9),
		storedTask("b", task.PriorityDoNow, 0.8),
		storedTask("c", task.PriorityArchive, 0.1),
	}
	require.NoError(t, s.LogRun(5, tasks))

	var emails, extracted, p0, p3 int
	row := s.db.QueryRow(`SELECT emails_processed, tasks_extracted, p0_count, p3_count FROM processing_log`)
	require.NoError(t, row.Scan(&emails, &extracted, &p0, &p3))
	assert.Equal(t, 5, emails)
	assert.Equal(t, 3, extracted)
	assert.Equal(t, 2, p0)
	assert.Equal(t, 1, p3)
}

func TestScanDegradesMalformedRows(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(`
		INSERT INTO tasks
		(id, title, description, source_email_id, source_subject, sender, sender_name,
		 deadline, priority, status, tags, dependencies, created_at)
		VALUES ('bad', 'Odd row', '', '', '', '', '', 'someday', 'P9', 'done', 'not json', '[]', 'never')
	`)
	require.NoError(t, err)

	got, err := s.GetTask("bad")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Deadline)
	assert.Equal(t, task.PrioritySchedule, got.Priority)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, []string{}, got.Tags)
	assert.True(t, got.CreatedAt.IsZero())
}
