package protocol

import (
	"testing"
	"time"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want StatusClass
	}{
		{"completed", StatusCompleted},
		{"SUCCESS", StatusCompleted},
		{"Done", StatusCompleted},
		{"ok", StatusCompleted},
		{"failed", StatusFailed},
		{"FAILURE", StatusFailed},
		{"error", StatusFailed},
		{"running", StatusRunning},
		{"in_progress", StatusRunning},
		{"  processing  ", StatusRunning},
		{"pending", StatusPending},
		{"queued", StatusPending},
		{"fallback", StatusUnknown},
		{"stdout_closed", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeStatus(tt.raw); got != tt.want {
				t.Errorf("NormalizeStatus(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStatusClassTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
	if StatusRunning.Terminal() || StatusPending.Terminal() || StatusUnknown.Terminal() {
		t.Error("running, pending and unknown must not be terminal")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   time.Time
		wantOK bool
	}{
		{
			name:   "naive timestamp assumed UTC",
			raw:    "2026-08-30T10:00:00",
			want:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "naive with fraction",
			raw:    "2026-08-30T10:00:00.123456",
			want:   time.Date(2026, 8, 30, 10, 0, 0, 123456000, time.UTC),
			wantOK: true,
		},
		{
			name:   "explicit zulu",
			raw:    "2026-08-30T10:00:00Z",
			want:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "explicit offset normalized to UTC",
			raw:    "2026-08-30T12:00:00+02:00",
			want:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{name: "empty", raw: "", wantOK: false},
		{name: "garbage", raw: "yesterday-ish", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestUsage_TolerantUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Usage
	}{
		{
			name: "responses api names",
			json: `{"input_tokens":10,"output_tokens":5,"reasoning_tokens":3,"total_tokens":18}`,
			want: Usage{InputTokens: 10, OutputTokens: 5, ReasoningTokens: 3, TotalTokens: 18},
		},
		{
			name: "chat completions names",
			json: `{"prompt_tokens":10,"completion_tokens":5}`,
			want: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		},
		{
			name: "nested reasoning details",
			json: `{"input_tokens":1,"output_tokens":2,"output_tokens_details":{"reasoning_tokens":7}}`,
			want: Usage{InputTokens: 1, OutputTokens: 2, ReasoningTokens: 7, TotalTokens: 3},
		},
		{
			name: "empty object",
			json: `{}`,
			want: Usage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Usage
			if err := got.UnmarshalJSON([]byte(tt.json)); err != nil {
				t.Fatalf("UnmarshalJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
