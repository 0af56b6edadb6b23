package util

import (
	"strings"
	"testing"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "clean string",
			input:    "Hello World",
			expected: "Hello World",
		},
		{
			name:     "string with newline",
			input:    "Hello\nWorld",
			expected: "Hello World",
		},
		{
			name:     "string with carriage return and newline",
			input:    "Hello\r\nWorld",
			expected: "Hello World",
		},
		{
			name:     "string with control characters",
			input:    "Hello\x00\x01\x1FWorld",
			expected: "Hello World",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.expected {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMaskSensitive(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		leaked  string
		present string
	}{
		{
			name:    "json password field",
			input:   `{"email":"a@x.com","password":"hunter2"}`,
			leaked:  "hunter2",
			present: "<redacted>",
		},
		{
			name:    "query string token",
			input:   "GET /cb?token=abc123&state=ok",
			leaked:  "abc123",
			present: "<redacted>",
		},
		{
			name:    "api key assignment",
			input:   "api_key=sk-live-deadbeef",
			leaked:  "sk-live-deadbeef",
			present: "<redacted>",
		},
		{
			name:    "plain text untouched",
			input:   "hello world",
			present: "hello world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSensitive(tt.input)
			if tt.leaked != "" && strings.Contains(got, tt.leaked) {
				t.Errorf("MaskSensitive(%q) leaked %q: %q", tt.input, tt.leaked, got)
			}
			if !strings.Contains(got, tt.present) {
				t.Errorf("MaskSensitive(%q) = %q, want substring %q", tt.input, got, tt.present)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Errorf("Truncate = %q, want %q", got, "abc")
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate = %q, want %q", got, "abc")
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("Truncate with max=0 = %q, want unchanged", got)
	}
}

func TestExcerpt(t *testing.T) {
	in := "password=secret\nnext line"
	got := Excerpt(in, 200)
	if strings.Contains(got, "secret") {
		t.Errorf("Excerpt leaked credential: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("Excerpt kept newline: %q", got)
	}
}
