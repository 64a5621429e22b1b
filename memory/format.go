package memory

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Headers used by the built-in formatter styles.
const (
	InjectionHeader = "--- Relevant Memories Retrieved From Your Past ---"
	RecallHeader    = "Here is what I recall that is most relevant:"
)

// Formatter renders records into a bounded text block.
//
// Records are ordered by Score descending, ties broken by CreatedAt
// descending. Whole records are dropped once the next one would push the
// block past the budget; a record is never cut mid-line.
type Formatter struct {
	Header   string
	Numbered bool // "1. content" instead of "- content"
	Budget   int  // Max runes for the whole block; <= 0 means unbounded
}

// NewInjectionFormatter returns the formatter used for prompt injection.
func NewInjectionFormatter(budget int) *Formatter {
	return &Formatter{Header: InjectionHeader, Budget: budget}
}

// NewRecallFormatter returns the formatter used for explicit recall replies.
func NewRecallFormatter(budget int) *Formatter {
	return &Formatter{Header: RecallHeader, Numbered: true, Budget: budget}
}

// Format renders records. It returns "" when there is nothing to show,
// including when not even the first record fits the budget.
func (f *Formatter) Format(records []Record) string {
	if len(records) == 0 {
		return ""
	}

	ordered := SortByRelevance(records)

	var b strings.Builder
	used := 0
	if f.Header != "" {
		b.WriteString(f.Header)
		used = utf8.RuneCountInString(f.Header)
	}

	kept := 0
	for _, rec := range ordered {
		content := strings.Join(strings.Fields(rec.Content), " ")
		if content == "" {
			continue
		}

		var line string
		if f.Numbered {
			line = fmt.Sprintf("%d. %s", kept+1, content)
		} else {
			line = "- " + content
		}

		cost := utf8.RuneCountInString(line)
		if used > 0 {
			cost++ // newline separator
		}
		if f.Budget > 0 && used+cost > f.Budget {
			break
		}

		if used > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		used += cost
		kept++
	}

	if kept == 0 {
		return ""
	}
	return b.String()
}

// SortByRelevance returns a copy of records ordered by Score descending,
// then CreatedAt descending. The input slice is left untouched.
func SortByRelevance(records []Record) []Record {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	return ordered
}
