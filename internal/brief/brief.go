package brief

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/mailbrief/internal/llm"
	"github.com/quillhq/mailbrief/internal/task"
	"github.com/quillhq/mailbrief/internal/triage"
)

const (
	briefSystemPrompt = `You are a concise executive briefing assistant.
Generate a crisp daily email brief that a busy executive can scan in 30 seconds.

Rules:
- Lead with the most urgent items
- Use bullet points, not paragraphs
- Include sender names for context
- Flag any calendar conflicts
- End with a recommended "Top 3 focus" for the day
- Keep the entire brief under 500 words`

	briefUserPrompt = `Generate a daily brief from these prioritized tasks:

<tasks>
%s
</tasks>

<stats>
Emails processed: %d
Tasks extracted: %d
Date: %s
</stats>

<calendar_events>
%s
</calendar_events>

Format as clean Markdown. Start with "## 📋 Daily Brief — %s"`
)

// Event is a calendar-like entry checked against task deadlines.
type Event struct {
	Start   string `json:"start"`
	Summary string `json:"summary"`
}

// SenderCount is one (sender, task count) pair.
type SenderCount struct {
	Sender string
	Count  int
}

// Brief is a derived, read-only snapshot of one pipeline run. It is built
// fresh per invocation and never persisted.
type Brief struct {
	Date            time.Time
	EmailsProcessed int
	TasksExtracted  int
	ByPriority      map[task.Priority][]*task.Task
	UrgentCount     int
	Conflicts       []string
	TopSenders      []SenderCount
}

// Composer builds briefs, optionally polished by the language model.
type Composer struct {
	llm llm.Client
	now func() time.Time
	log zerolog.Logger
}

func NewComposer(client llm.Client, log zerolog.Logger) *Composer {
	return &Composer{
		llm: client,
		now: time.Now,
		log: log.With().Str("component", "brief").Logger(),
	}
}

// Compose builds the structured brief from an already prioritized task list.
func (c *Composer) Compose(tasks []*task.Task, emailsProcessed int, events []Event) *Brief {
	groups := triage.GroupByPriority(tasks)

	return &Brief{
		Date:            c.now(),
		EmailsProcessed: emailsProcessed,
		TasksExtracted:  len(tasks),
		ByPriority:      groups,
		UrgentCount:     len(groups[task.PriorityDoNow]),
		Conflicts:       detectConflicts(tasks, events, c.log),
		TopSenders:      topSenders(tasks, 5),
	}
}

// ComposeMarkdown asks the oracle for a polished digest and falls back to
// the structured rendering on any failure.
func (c *Composer) ComposeMarkdown(tasks []*task.Task, emailsProcessed int, events []Event) string {
	tasksJSON, jsonErr := json.MarshalIndent(tasks, "", "  ")
	if jsonErr == nil {
		eventsJSON, _ := json.Marshal(events)
		if len(events) == 0 {
			eventsJSON = []byte("[]")
		}
		today := c.now()
		out, err := c.llm.Complete(llm.Request{
			System: briefSystemPrompt,
			Prompt: fmt.Sprintf(briefUserPrompt,
				tasksJSON, emailsProcessed, len(tasks),
				today.Format("2006-01-02"), eventsJSON,
				today.Format("Jan 02, 2006")),
			MaxTokens:   1500,
			Temperature: 0.3,
		})
		if err == nil {
			return out
		}
		c.log.Error().Err(err).Msg("brief generation failed, using structured fallback")
	}

	return c.Compose(tasks, emailsProcessed, events).Markdown()
}

// detectConflicts reports every (task, event) pairing sharing a calendar
// date. Events with unparsable start timestamps are skipped individually.
func detectConflicts(tasks []*task.Task, events []Event, log zerolog.Logger) []string {
	var conflicts []string
	for _, t := range tasks {
		if t.Deadline == nil {
			continue
		}
		for _, ev := range events {
			if ev.Start == "" {
				continue
			}
			start, ok := task.ParseTimestamp(ev.Start)
			if !ok {
				log.Debug().Str("start", ev.Start).Msg("skipping event with unparsable start")
				continue
			}
			if sameDate(*t.Deadline, start) {
				summary := ev.Summary
				if summary == "" {
					summary = "event"
				}
				conflicts = append(conflicts, fmt.Sprintf("⚠️ '%s' due same day as '%s'", t.Title, summary))
			}
		}
	}
	return conflicts
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// topSenders counts tasks per sender display name (address when no name)
// and returns the top n ordered by count descending, ties in
// first-encountered order.
func topSenders(tasks []*task.Task, n int) []SenderCount {
	counts := map[string]int{}
	var order []string
	for _, t := range tasks {
		name := t.SenderName
		if name == "" {
			name = t.Sender
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	result := make([]SenderCount, 0, len(order))
	for _, name := range order {
		result = append(result, SenderCount{Sender: name, Count: counts[name]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

var priorityHeadings = map[task.Priority]struct {
	emoji string
	label string
}{
	task.PriorityDoNow:    {"🔴", "Do Now"},
	task.PrioritySchedule: {"🟡", "Schedule"},
	task.PriorityDelegate: {"🔵", "Delegate"},
	task.PriorityArchive:  {"⚪", "Archive/FYI"},
}

// Markdown renders the structured digest: buckets in fixed order with empty
// ones omitted, then stats, then conflicts.
func (b *Brief) Markdown() string {
	lines := []string{
		fmt.Sprintf("## 📋 Daily Brief — %s", b.Date.Format("Jan 02, 2006")),
		"",
	}

	for _, p := range task.Priorities {
		tasks := b.ByPriority[p]
		if len(tasks) == 0 {
			continue
		}
		h := priorityHeadings[p]
		lines = append(lines, fmt.Sprintf("### %s %s: %s (%d tasks)", h.emoji, p, h.label, len(tasks)))
		for i, t := range tasks {
			lines = append(lines, fmt.Sprintf("%d. **%s** — from: %s — Due: %s", i+1, t.Title, t.Sender, deadlineDisplay(t)))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"### 📊 Stats",
		fmt.Sprintf("- %d emails processed | %d tasks extracted | %d urgent",
			b.EmailsProcessed, b.TasksExtracted, b.UrgentCount),
	)

	if len(b.Conflicts) > 0 {
		lines = append(lines, "", "### ⚠️ Calendar Conflicts")
		for _, conflict := range b.Conflicts {
			lines = append(lines, "- "+conflict)
		}
	}

	return strings.Join(lines, "\n")
}

func deadlineDisplay(t *task.Task) string {
	if t.Deadline == nil {
		return "No deadline"
	}
	if t.DeadlineText != "" {
		return t.DeadlineText
	}
	return t.Deadline.Format("Jan 02")
}

// LoadEvents reads calendar events from a JSON file. A missing or malformed
// file degrades to no events.
func LoadEvents(path string, log zerolog.Logger) []Event {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not load calendar events")
		return nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not parse calendar events")
		return nil
	}
	return events
}
