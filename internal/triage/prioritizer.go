package triage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/mailbrief/internal/llm"
	"github.com/quillhq/mailbrief/internal/task"
)

const (
	prioritizationSystemPrompt = `You are a prioritization expert using the Eisenhower Matrix.
You score tasks on two axes:

## Urgency (0.0 - 1.0)
- 1.0: Due within 24 hours, contains "ASAP", "urgent", "immediately"
- 0.8: Due within 48 hours, from VIP sender, marked important
- 0.6: Due this week, involves external stakeholders
- 0.4: Due within 2 weeks, internal project work
- 0.2: No specific deadline, nice-to-have
- 0.0: No time sensitivity at all

## Importance (0.0 - 1.0)
- 1.0: Revenue impact, legal/compliance, CEO/board request
- 0.8: Key client deliverable, strategic initiative
- 0.6: Team-wide impact, process improvement
- 0.4: Individual contributor work, routine operations
- 0.2: Internal housekeeping, optional improvements
- 0.0: Spam/irrelevant

## Priority Assignment
- P0 (DO NOW):    urgency >= 0.7 AND importance >= 0.7
- P1 (SCHEDULE):  urgency < 0.7  AND importance >= 0.6
- P2 (DELEGATE):  urgency >= 0.6 AND importance < 0.6
- P3 (ARCHIVE):   urgency < 0.6  AND importance < 0.6

## VIP Sender Rules
If a sender is marked as VIP, boost their urgency by the configured amount.`

	prioritizationUserPrompt = `Prioritize the following tasks using the Eisenhower Matrix.

<tasks>
%s
</tasks>

<vip_senders>
%s
</vip_senders>

Today's date is: %s

For each task, return:
{
  "task_id": "original task id",
  "urgency_score": 0.0-1.0,
  "importance_score": 0.0-1.0,
  "priority": "P0" | "P1" | "P2" | "P3",
  "reasoning": "Brief explanation of priority assignment",
  "suggested_action": "What to do next"
}

Return ONLY valid JSON array. No markdown.`
)

// refinement is one per-task override from the oracle. Absent score fields
// keep the task's existing values.
type refinement struct {
	TaskID          string   `json:"task_id"`
	UrgencyScore    *float64 `json:"urgency_score"`
	ImportanceScore *float64 `json:"importance_score"`
	Priority        string   `json:"priority"`
}

// Prioritizer runs the full prioritization pass: VIP boost, oracle
// refinement with deterministic fallback, classification and stable sort.
type Prioritizer struct {
	llm   llm.Client
	rules []VIPRule
	now   func() time.Time
	log   zerolog.Logger
}

func NewPrioritizer(client llm.Client, rules []VIPRule, log zerolog.Logger) *Prioritizer {
	return &Prioritizer{
		llm:   client,
		rules: rules,
		now:   time.Now,
		log:   log.With().Str("component", "triage").Logger(),
	}
}

// Prioritize mutates tasks in place and returns them fully classified and
// sorted. Oracle failure degrades to the rule-based classifier and never
// surfaces as an error.
func (p *Prioritizer) Prioritize(tasks []*task.Task) []*task.Task {
	if len(tasks) == 0 {
		return tasks
	}

	for _, t := range tasks {
		if ApplyVIPBoost(t, p.rules) {
			p.log.Info().Str("task", t.Title).Str("sender", t.Sender).Msg("VIP boost applied")
		}
	}

	if err := p.refine(tasks); err != nil {
		p.log.Warn().Err(err).Msg("oracle prioritization failed, using rule-based fallback")
		ClassifyAll(tasks)
	}

	SortTasks(tasks)
	return tasks
}

func (p *Prioritizer) refine(tasks []*task.Task) error {
	tasksJSON, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	vipJSON, err := json.MarshalIndent(p.rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vip rules: %w", err)
	}

	resp, err := p.llm.Complete(llm.Request{
		System:      prioritizationSystemPrompt,
		Prompt:      fmt.Sprintf(prioritizationUserPrompt, tasksJSON, vipJSON, p.now().Format("2006-01-02")),
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		return err
	}

	var refinements []refinement
	if err := json.Unmarshal([]byte(resp), &refinements); err != nil {
		return fmt.Errorf("parse refinement output: %w", err)
	}

	overrides := make(map[string]refinement, len(refinements))
	for _, r := range refinements {
		if r.Priority != "" {
			if _, err := task.ParsePriority(r.Priority); err != nil {
				return fmt.Errorf("refinement output: %w", err)
			}
		}
		overrides[r.TaskID] = r
	}

	// Tasks the oracle did not mention are left untouched.
	for _, t := range tasks {
		r, ok := overrides[t.ID]
		if !ok {
			continue
		}
		if r.UrgencyScore != nil {
			t.UrgencyScore = *r.UrgencyScore
		}
		if r.ImportanceScore != nil {
			t.ImportanceScore = *r.ImportanceScore
		}
		priority := r.Priority
		if priority == "" {
			priority = string(task.PrioritySchedule)
		}
		t.Priority = task.Priority(priority)
	}
	return nil
}
