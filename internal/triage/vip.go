package triage

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/quillhq/mailbrief/internal/task"
)

// VIPRule matches a sender by exact address or by domain and grants an
// additive score boost. Rules are evaluated in file order; the first match
// wins and later rules are not tried.
type VIPRule struct {
	Name          string `yaml:"name" json:"name"`
	Email         string `yaml:"email,omitempty" json:"email,omitempty"`
	Domain        string `yaml:"domain,omitempty" json:"domain,omitempty"`
	PriorityBoost int    `yaml:"priority_boost,omitempty" json:"priority_boost,omitempty"`
}

func (r VIPRule) matches(sender string) bool {
	sender = strings.ToLower(sender)
	if r.Email != "" && strings.ToLower(r.Email) == sender {
		return true
	}
	if r.Domain != "" && strings.HasSuffix(sender, "@"+strings.ToLower(r.Domain)) {
		return true
	}
	return false
}

// ApplyVIPBoost mutates t in place when the first matching rule is found:
// both scores gain boost×0.1 clamped to 1.0 and a vip:<name> tag is appended.
// Returns true when a rule matched.
func ApplyVIPBoost(t *task.Task, rules []VIPRule) bool {
	for _, rule := range rules {
		if !rule.matches(t.Sender) {
			continue
		}
		mult := rule.PriorityBoost
		if mult == 0 {
			mult = 1
		}
		boost := float64(mult) * 0.1
		t.UrgencyScore = min(t.UrgencyScore+boost, 1.0)
		t.ImportanceScore = min(t.ImportanceScore+boost, 1.0)
		name := rule.Name
		if name == "" {
			name = "VIP"
		}
		t.Tags = append(t.Tags, "vip:"+name)
		return true
	}
	return false
}

type vipFile struct {
	VIPSenders []VIPRule `yaml:"vip_senders"`
}

// LoadVIPRules reads the VIP sender list from a YAML file. A missing or
// malformed file degrades to an empty rule list.
func LoadVIPRules(path string, log zerolog.Logger) []VIPRule {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not load VIP config")
		return nil
	}
	var f vipFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		log.Warn().Err(fmt.Errorf("parse VIP config: %w", err)).Str("path", path).Msg("could not load VIP config")
		return nil
	}
	return f.VIPSenders
}
