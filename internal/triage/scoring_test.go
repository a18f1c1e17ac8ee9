package triage

import "testing"

func TestUrgencyScore(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		want    float64
	}{
		{"empty list returns floor", nil, 0.3},
		{"no match returns floor", []string{"sometime maybe"}, 0.3},
		{"immediately", []string{"needs doing immediately"}, 1.0},
		{"asap", []string{"please do this ASAP"}, 0.9},
		{"eod", []string{"by EOD"}, 0.85},
		{"tomorrow", []string{"due tomorrow morning"}, 0.7},
		{"when you can", []string{"when you can"}, 0.2},
		{"max across signals", []string{"soon", "due today"}, 0.85},
		{"substring inside a word still matches", []string{"EODISH"}, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UrgencyScore(tt.signals); got != tt.want {
				t.Fatalf("UrgencyScore(%v) = %v, want %v", tt.signals, got, tt.want)
			}
		})
	}
}

func TestImportanceScore(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		want    float64
	}{
		{"empty list returns floor", nil, 0.5},
		{"no match returns floor", []string{"random chatter"}, 0.5},
		{"revenue", []string{"revenue impact"}, 0.9},
		{"board", []string{"board meeting prep"}, 0.85},
		{"client", []string{"key client deliverable"}, 0.8},
		{"sign off", []string{"needs sign off"}, 0.7},
		{"fyi stays below floor match", []string{"just FYI"}, 0.5},
		{"max wins over low keyword", []string{"fyi", "legal review"}, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImportanceScore(tt.signals); got != tt.want {
				t.Fatalf("ImportanceScore(%v) = %v, want %v", tt.signals, got, tt.want)
			}
		})
	}
}
