package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}
	data := "test message"

	output, err := formatter.Format(data)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	expected := "test message\n"
	if string(output) != expected {
		t.Errorf("Format() = %q, want %q", string(output), expected)
	}
}

func TestTextFormatterWriter(t *testing.T) {
	formatter := &TextFormatter{}
	data := "test message"
	buf := &bytes.Buffer{}

	err := formatter.FormatTo(buf, data)
	if err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	expected := "test message\n"
	if buf.String() != expected {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), expected)
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   interface{}
		indent bool
	}{
		{
			name:   "simple string",
			data:   "test",
			indent: false,
		},
		{
			name: "map with indent",
			data: map[string]string{
				"key": "value",
			},
			indent: true,
		},
		{
			name: "struct",
			data: struct {
				Name  string `json:"name"`
				Value int    `json:"value"`
			}{
				Name:  "test",
				Value: 42,
			},
			indent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}
			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			// Verify it's valid JSON by unmarshaling
			var result interface{}
			if err := json.Unmarshal(output, &result); err != nil {
				t.Errorf("Format() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestJSONFormatterWriter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	data := map[string]string{"test": "value"}
	buf := &bytes.Buffer{}

	err := formatter.FormatTo(buf, data)
	if err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	// Verify valid JSON
	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Errorf("FormatTo() produced invalid JSON: %v", err)
	}

	if result["test"] != "value" {
		t.Errorf("FormatTo() = %v, want %v", result, data)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		want   string
	}{
		{
			name:   "text formatter",
			format: FormatText,
			want:   "*cli.TextFormatter",
		},
		{
			name:   "json formatter",
			format: FormatJSON,
			want:   "*cli.JSONFormatter",
		},
		{
			name:   "csv formatter",
			format: FormatCSV,
			want:   "*cli.CSVFormatter",
		},
		{
			name:   "default to text",
			format: "unknown",
			want:   "*cli.TextFormatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewFormatter(tt.format)
			got := fmt.Sprintf("%T", formatter)
			if got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

// expiryTable is a Tabular fixture shaped like an expiry report.
type expiryTable struct {
	rows [][]string
}

func (tb expiryTable) CSVHeader() []string    { return []string{"identity", "not_after"} }
func (tb expiryTable) CSVRecords() [][]string { return tb.rows }

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{}

	t.Run("renders tabular data", func(t *testing.T) {
		table := expiryTable{rows: [][]string{
			{"mail.example.com", "2026-09-01"},
			{"chat.example.com", "2026-10-15"},
		}}

		output, err := formatter.Format(table)
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}

		expected := "identity,not_after\n" +
			"mail.example.com,2026-09-01\n" +
			"chat.example.com,2026-10-15\n"
		if string(output) != expected {
			t.Errorf("Format() = %q, want %q", string(output), expected)
		}
	})

	t.Run("quotes fields with commas", func(t *testing.T) {
		table := expiryTable{rows: [][]string{
			{"a.example.com, b.example.com", "2026-09-01"},
		}}

		output, err := formatter.Format(table)
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		expected := "identity,not_after\n" +
			"\"a.example.com, b.example.com\",2026-09-01\n"
		if string(output) != expected {
			t.Errorf("Format() = %q, want %q", string(output), expected)
		}
	})

	t.Run("rejects non-tabular data", func(t *testing.T) {
		if _, err := formatter.Format(map[string]string{"key": "value"}); err == nil {
			t.Error("Format() expected error for non-tabular data, got nil")
		}
	})

	t.Run("no records leaves only the header", func(t *testing.T) {
		output, err := formatter.Format(expiryTable{})
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		if string(output) != "identity,not_after\n" {
			t.Errorf("Format() = %q, want header only", string(output))
		}
	})
}
