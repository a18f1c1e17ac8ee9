package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/quillhq/mailbrief/internal/task"
)

// renderTasks writes the task list in the requested format. The table view
// groups tasks by priority bucket in sorted order.
func renderTasks(w io.Writer, tasks []*task.Task, format string) error {
	switch format {
	case "json":
		return renderJSON(w, tasks)
	case "csv":
		return renderCSV(w, tasks)
	case "table", "":
		return renderTable(w, tasks)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderJSON(w io.Writer, tasks []*task.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderCSV(w io.Writer, tasks []*task.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"priority", "title", "sender", "deadline_text", "assignee", "confidence"}); err != nil {
		return err
	}
	for _, t := range tasks {
		record := []string{
			string(t.Priority),
			t.Title,
			t.Sender,
			t.DeadlineText,
			t.Assignee,
			fmt.Sprintf("%.0f%%", t.Confidence*100),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderTable(w io.Writer, tasks []*task.Task) error {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "📋 EXTRACTED TASKS — Eisenhower Matrix")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var current task.Priority = "none"
	for _, t := range tasks {
		if t.Priority != current {
			current = t.Priority
			tw.Flush()
			fmt.Fprintf(w, "\n%s\n", current.Label())
			fmt.Fprintln(w, strings.Repeat("-", 60))
		}
		fmt.Fprintf(tw, "  [%.0f%%]\t%s\tFrom: %s\tDue: %s\n",
			t.Confidence*100, t.Title, t.SenderName, deadlineColumn(t))
		if t.Assignee != "" {
			fmt.Fprintf(tw, "  \t  Assignee: %s\t\t\n", t.Assignee)
		}
	}
	return tw.Flush()
}

func deadlineColumn(t *task.Task) string {
	if t.DeadlineText != "" {
		return t.DeadlineText
	}
	if t.Deadline != nil {
		return t.Deadline.Format("Jan 02")
	}
	return "No deadline"
}
