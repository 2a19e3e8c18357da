package chunking

import (
	"strings"
	"testing"
)

func TestSplitBelowThreshold(t *testing.T) {
	c := New(Config{})
	text := "Spacious 2 bedroom in Williamsburg, pets allowed."
	chunks := c.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("expected single unchanged chunk, got %+v", chunks)
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(Config{})
	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("expected nil for empty text, got %+v", chunks)
	}
}

func TestSplitAboveThreshold(t *testing.T) {
	c := New(Config{Threshold: 100, MaxChars: 80, Overlap: 10})
	paragraph := strings.Repeat("This is a sentence about the apartment. ", 10)
	chunks := c.Split(paragraph)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long text, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			t.Errorf("chunk should not be empty")
		}
	}
}

func TestSplitOnBlankLines(t *testing.T) {
	c := New(Config{Threshold: 50, MaxChars: 60, Overlap: 5})
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected the blank line to force a split, got %+v", chunks)
	}
}

func TestSplitOnListItems(t *testing.T) {
	c := New(Config{Threshold: 20, MaxChars: 40, Overlap: 0})
	text := "- pets allowed\n- gym access\n- rooftop deck\n- bike storage\n- laundry in unit"
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected list items to split, got %+v", chunks)
	}
}
