// Package chunking implements the text-chunking rule the extractor applies
// to long listing descriptions before calling the LLM (spec §4.1): split on
// blank lines, then list items, then sentence boundaries, producing
// overlapping chunks. Adapted from the teacher's recursive character
// splitter (pkg/chunking/text/recursive_splitter.go), generalized to a
// fixed three-tier separator cascade instead of a configurable list.
package chunking

import (
	"regexp"
	"strings"
)

// Config controls chunk sizing. Defaults match spec §4.1/§9: only chunk
// above Threshold characters, target ~MaxChars per chunk with ~Overlap
// character overlap between consecutive chunks.
type Config struct {
	Threshold int
	MaxChars  int
	Overlap   int
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 1000
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 800
	}
	if c.Overlap < 0 {
		c.Overlap = 50
	}
}

// listItemPattern matches a line that starts a list item ("- ", "* ", "1. ").
var listItemPattern = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+\.)\s+`)

// sentenceBoundaryPattern matches the end of a sentence.
var sentenceBoundaryPattern = regexp.MustCompile(`(?:[.!?])\s+`)

// Chunker splits long text into overlapping chunks for parallel extraction.
type Chunker struct {
	cfg Config
}

// New constructs a Chunker with cfg, applying spec defaults to a zero or
// negative Threshold or MaxChars and to a negative Overlap; a zero Overlap
// is kept and means no overlap.
func New(cfg Config) *Chunker {
	cfg.applyDefaults()
	return &Chunker{cfg: cfg}
}

// Split returns text unchanged as the sole chunk when it is at or below the
// configured threshold; otherwise it cascades blank-line, then list-item,
// then sentence-boundary splitting and merges the pieces into ~MaxChars
// chunks with ~Overlap character overlap (spec §4.1).
func (c *Chunker) Split(text string) []string {
	if len(text) <= c.cfg.Threshold {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	pieces := c.splitRecursive(text)
	return c.merge(pieces)
}

func (c *Chunker) splitRecursive(text string) []string {
	if len(text) <= c.cfg.MaxChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if strings.Contains(text, "\n\n") {
		return c.splitAndRecurse(text, "\n\n")
	}
	if listItemPattern.MatchString(text) {
		return c.splitAndRecurseRegex(text, listItemPattern)
	}
	if sentenceBoundaryPattern.MatchString(text) {
		return c.splitAndRecurseRegex(text, sentenceBoundaryPattern)
	}
	return c.forceSplit(text)
}

func (c *Chunker) splitAndRecurse(text string, sep string) []string {
	var out []string
	for _, part := range strings.Split(text, sep) {
		out = append(out, c.splitRecursive(part)...)
	}
	return out
}

func (c *Chunker) splitAndRecurseRegex(text string, re *regexp.Regexp) []string {
	var out []string
	for _, part := range re.Split(text, -1) {
		out = append(out, c.splitRecursive(part)...)
	}
	return out
}

// forceSplit breaks text at the MaxChars boundary when no structural
// separator is found, preferring the nearest preceding space.
func (c *Chunker) forceSplit(text string) []string {
	var out []string
	for len(text) > c.cfg.MaxChars {
		splitAt := c.cfg.MaxChars
		for i := splitAt; i > splitAt/2; i-- {
			if text[i] == ' ' {
				splitAt = i + 1
				break
			}
		}
		out = append(out, text[:splitAt])
		text = text[splitAt:]
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, text)
	}
	return out
}

// merge packs pieces into chunks of up to MaxChars, carrying Overlap
// trailing characters of the previous chunk into the next one.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		carry := ""
		if c.cfg.Overlap > 0 && current.Len() > c.cfg.Overlap {
			s := current.String()
			carry = s[len(s)-c.cfg.Overlap:]
		}
		current.Reset()
		current.WriteString(carry)
	}

	for _, p := range pieces {
		if current.Len() > 0 && current.Len()+len(p) > c.cfg.MaxChars {
			flush()
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}
