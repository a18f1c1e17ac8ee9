package triage

import (
	"sort"

	"github.com/quillhq/mailbrief/internal/task"
)

// Classify maps an (urgency, importance) pair to a priority bucket. The
// rules are evaluated in order and the first match wins. Pairs falling in
// the gap between the 0.6 and 0.7 thresholds, e.g. (0.65, 0.65), fail all
// three rules and land in P3; downstream behavior depends on this, so the
// gap must not be normalized away.
func Classify(urgency, importance float64) task.Priority {
	switch {
	case urgency >= 0.7 && importance >= 0.7:
		return task.PriorityDoNow
	case urgency < 0.7 && importance >= 0.6:
		return task.PrioritySchedule
	case urgency >= 0.6 && importance < 0.6:
		return task.PriorityDelegate
	}
	return task.PriorityArchive
}

// ClassifyAll applies the rule-based classifier to every task in place.
func ClassifyAll(tasks []*task.Task) {
	for _, t := range tasks {
		t.Priority = Classify(t.UrgencyScore, t.ImportanceScore)
	}
}

// SortTasks orders tasks by bucket rank, then urgency descending. The sort
// is stable so equal-key tasks keep their input order.
func SortTasks(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].UrgencyScore > tasks[j].UrgencyScore
	})
}

// GroupByPriority buckets tasks preserving their relative order.
func GroupByPriority(tasks []*task.Task) map[task.Priority][]*task.Task {
	groups := map[task.Priority][]*task.Task{
		task.PriorityDoNow:    {},
		task.PrioritySchedule: {},
		task.PriorityDelegate: {},
		task.PriorityArchive:  {},
	}
	for _, t := range tasks {
		groups[t.Priority] = append(groups[t.Priority], t)
	}
	return groups
}
