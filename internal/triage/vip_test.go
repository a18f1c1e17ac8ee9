package triage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quillhq/mailbrief/internal/task"
)

func TestApplyVIPBoostEmailMatch(t *testing.T) {
	tk := &task.Task{Sender: "CEO@yourcompany.com", UrgencyScore: 0.3, ImportanceScore: 0.5}
	rules := []VIPRule{{Name: "CEO", Email: "ceo@yourcompany.com", PriorityBoost: 2}}

	if !ApplyVIPBoost(tk, rules) {
		t.Fatal("expected a match")
	}
	if tk.UrgencyScore != 0.5 {
		t.Fatalf("urgency = %v, want 0.5", tk.UrgencyScore)
	}
	if tk.ImportanceScore != 0.7 {
		t.Fatalf("importance = %v, want 0.7", tk.ImportanceScore)
	}
	if len(tk.Tags) != 1 || tk.Tags[0] != "vip:CEO" {
		t.Fatalf("tags = %v", tk.Tags)
	}
}

func TestApplyVIPBoostDomainMatch(t *testing.T) {
	rules := []VIPRule{{Name: "Internal", Domain: "yourcompany.com"}}

	match := &task.Task{Sender: "ceo@yourcompany.com", UrgencyScore: 0.3, ImportanceScore: 0.5}
	if !ApplyVIPBoost(match, rules) {
		t.Fatal("expected domain match")
	}
	if match.Tags[0] != "vip:Internal" {
		t.Fatalf("tags = %v", match.Tags)
	}

	miss := &task.Task{Sender: "ceo@otherco.com", UrgencyScore: 0.3, ImportanceScore: 0.5}
	if ApplyVIPBoost(miss, rules) {
		t.Fatal("expected no match for other domain")
	}
	if miss.UrgencyScore != 0.3 || len(miss.Tags) != 0 {
		t.Fatal("no-match must not mutate the task")
	}
}

func TestApplyVIPBoostClampsAtOne(t *testing.T) {
	tk := &task.Task{Sender: "a@b.com", UrgencyScore: 0.95, ImportanceScore: 0.99}
	ApplyVIPBoost(tk, []VIPRule{{Email: "a@b.com", PriorityBoost: 3}})

	if tk.UrgencyScore != 1.0 || tk.ImportanceScore != 1.0 {
		t.Fatalf("scores = %v, %v, want clamped to 1.0", tk.UrgencyScore, tk.ImportanceScore)
	}
	if tk.Tags[0] != "vip:VIP" {
		t.Fatalf("missing rule name should fall back to VIP, got %v", tk.Tags)
	}
}

func TestApplyVIPBoostFirstMatchWins(t *testing.T) {
	tk := &task.Task{Sender: "ceo@yourcompany.com", UrgencyScore: 0.3, ImportanceScore: 0.5}
	rules := []VIPRule{
		{Name: "First", Domain: "yourcompany.com", PriorityBoost: 1},
		{Name: "Second", Email: "ceo@yourcompany.com", PriorityBoost: 5},
	}
	ApplyVIPBoost(tk, rules)

	if len(tk.Tags) != 1 || tk.Tags[0] != "vip:First" {
		t.Fatalf("tags = %v, want only the first matching rule applied", tk.Tags)
	}
	if tk.UrgencyScore != 0.4 {
		t.Fatalf("urgency = %v, want 0.4 from boost 1", tk.UrgencyScore)
	}
}

func TestApplyVIPBoostDefaultMultiplier(t *testing.T) {
	tk := &task.Task{Sender: "a@b.com", UrgencyScore: 0.3, ImportanceScore: 0.5}
	ApplyVIPBoost(tk, []VIPRule{{Email: "a@b.com"}})

	if tk.UrgencyScore != 0.4 {
		t.Fatalf("urgency = %v, want 0.4 from default boost", tk.UrgencyScore)
	}
}

func TestLoadVIPRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vip.yaml")
	content := `vip_senders:
  - name: CEO
    email: ceo@yourcompany.com
    priority_boost: 2
  - name: Internal
    domain: yourcompany.com
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules := LoadVIPRules(path, zerolog.Nop())
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[0].Name != "CEO" || rules[0].PriorityBoost != 2 {
		t.Fatalf("first rule = %+v", rules[0])
	}
	if rules[1].Domain != "yourcompany.com" {
		t.Fatalf("second rule = %+v", rules[1])
	}
}

func TestLoadVIPRulesDegradesToEmpty(t *testing.T) {
	if rules := LoadVIPRules("", zerolog.Nop()); rules != nil {
		t.Fatalf("empty path should yield no rules, got %v", rules)
	}
	if rules := LoadVIPRules("/does/not/exist.yaml", zerolog.Nop()); len(rules) != 0 {
		t.Fatalf("missing file should yield no rules, got %v", rules)
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("vip_senders: [\n  broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if rules := LoadVIPRules(path, zerolog.Nop()); len(rules) != 0 {
		t.Fatalf("malformed file should yield no rules, got %v", rules)
	}
}
