package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quillhq/mailbrief/internal/llm"
	"github.com/quillhq/mailbrief/internal/mail"
	"github.com/quillhq/mailbrief/internal/task"
	"github.com/quillhq/mailbrief/internal/triage"
)

const (
	extractionSystemPrompt = `You are an expert executive assistant.
Your job is to analyze emails and extract actionable tasks with high precision.

## What Counts as a Task
- Direct requests: "Please review the deck", "Send me the report"
- Implicit asks: "It would be great if someone could...", "We need to..."
- Deadlines: "By Friday", "Before the board meeting", "ASAP"
- Follow-ups: "Let's circle back on this", "Can you check on..."
- Approvals: "Please approve", "Sign off on this"

## What is NOT a Task
- FYI/informational emails with no action needed
- Newsletters and automated notifications (unless they contain deadlines)
- Social pleasantries ("Hope you're doing well")
- Already completed items ("I've finished the report")

## Extraction Rules
1. Each task must have a clear, actionable title starting with a verb
2. Identify WHO the task is assigned to (if mentioned)
3. Extract exact deadline text AND parse it to a date if possible
4. Note dependencies between tasks
5. Assign a confidence score (0.0-1.0) for each extraction
6. Tag tasks with relevant categories (finance, legal, engineering, marketing, etc.)`

	extractionUserPrompt = `Analyze the following email and extract ALL actionable tasks.

<email>
From: %s (%s)
To: %s
CC: %s
Date: %s
Subject: %s
Labels: %s

%s
</email>

Today's date is: %s

Return a JSON array of tasks. Each task should have:
{
  "title": "Action verb + description (max 80 chars)",
  "description": "Detailed context from the email",
  "assignee": "Who should do this (name/email or null if unclear)",
  "deadline_text": "Original deadline text from email or null",
  "deadline_iso": "ISO date if parseable, or null",
  "urgency_signals": ["list of urgency indicators found"],
  "importance_signals": ["list of importance indicators found"],
  "confidence": 0.0-1.0,
  "tags": ["category tags"],
  "dependencies": ["other task titles this depends on"]
}

If NO actionable tasks exist, return an empty array: []

IMPORTANT: Return ONLY valid JSON. No markdown, no explanation.`

	// Bodies are truncated before prompting to bound token usage.
	maxBodyChars = 3000
)

// candidate is the oracle's wire shape for one extracted task.
type candidate struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Assignee          string   `json:"assignee"`
	DeadlineText      string   `json:"deadline_text"`
	DeadlineISO       string   `json:"deadline_iso"`
	UrgencySignals    []string `json:"urgency_signals"`
	ImportanceSignals []string `json:"importance_signals"`
	Confidence        float64  `json:"confidence"`
	Tags              []string `json:"tags"`
	Dependencies      []string `json:"dependencies"`
}

// Extractor turns email messages into candidate task records.
type Extractor struct {
	llm llm.Client
	now func() time.Time
	log zerolog.Logger
}

func New(client llm.Client, log zerolog.Logger) *Extractor {
	return &Extractor{
		llm: client,
		now: time.Now,
		log: log.With().Str("component", "extract").Logger(),
	}
}

// ExtractBatch extracts tasks from every message in order. Failures are
// per-message: a bad oracle response costs that email's tasks, not the batch.
func (e *Extractor) ExtractBatch(messages []mail.Message) []*task.Task {
	var all []*task.Task
	for i, msg := range messages {
		e.log.Info().
			Int("n", i+1).
			Int("total", len(messages)).
			Str("subject", truncate(msg.Subject, 50)).
			Msg("processing email")
		tasks := e.Extract(msg)
		all = append(all, tasks...)
		e.log.Info().Int("tasks", len(tasks)).Msg("extraction done")
	}
	return all
}

// Extract extracts tasks from a single message. Oracle or parse failures
// are logged and yield an empty result.
func (e *Extractor) Extract(msg mail.Message) []*task.Task {
	resp, err := e.llm.Complete(llm.Request{
		System:      extractionSystemPrompt,
		Prompt:      e.buildPrompt(msg),
		MaxTokens:   2000,
		Temperature: 0.2,
	})
	if err != nil {
		e.log.Error().Err(err).Str("email_id", msg.ID).Msg("extraction oracle call failed")
		return nil
	}

	var candidates []candidate
	if err := json.Unmarshal([]byte(resp), &candidates); err != nil {
		e.log.Error().Err(err).Str("email_id", msg.ID).Msg("failed to parse extraction response")
		return nil
	}

	tasks := make([]*task.Task, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		tasks = append(tasks, e.buildTask(c, msg))
	}
	return tasks
}

func (e *Extractor) buildPrompt(msg mail.Message) string {
	cc := strings.Join(msg.CC, ", ")
	if cc == "" {
		cc = "None"
	}
	labels := strings.Join(msg.Labels, ", ")
	if labels == "" {
		labels = "None"
	}
	body := msg.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	return fmt.Sprintf(extractionUserPrompt,
		msg.Sender,
		msg.SenderName,
		strings.Join(msg.Recipients, ", "),
		cc,
		msg.Date.Format("2006-01-02 15:04"),
		msg.Subject,
		labels,
		body,
		e.now().Format("2006-01-02"),
	)
}

func (e *Extractor) buildTask(c candidate, msg mail.Message) *task.Task {
	var deadline *time.Time
	if c.DeadlineISO != "" {
		if parsed, ok := task.ParseTimestamp(c.DeadlineISO); ok {
			deadline = &parsed
		}
	}

	confidence := c.Confidence
	if confidence == 0 {
		confidence = 0.7
	}

	return &task.Task{
		ID:              uuid.NewString()[:8],
		Title:           c.Title,
		Description:     c.Description,
		SourceEmailID:   msg.ID,
		SourceSubject:   msg.Subject,
		Sender:          msg.Sender,
		SenderName:      msg.SenderName,
		Assignee:        c.Assignee,
		Deadline:        deadline,
		DeadlineText:    c.DeadlineText,
		Priority:        task.PrioritySchedule,
		UrgencyScore:    triage.UrgencyScore(c.UrgencySignals),
		ImportanceScore: triage.ImportanceScore(c.ImportanceSignals),
		Confidence:      confidence,
		Status:          task.StatusPending,
		Tags:            c.Tags,
		Dependencies:    c.Dependencies,
		CreatedAt:       e.now(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
