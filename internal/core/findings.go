package core

import (
	"fmt"
	"sort"
)

// categoryRank fixes the order of findings within one column.
var categoryRank = map[Category]int{
	CategoryOutOfRange:      0,
	CategoryInvalidEncoding: 1,
	CategoryTruncated:       2,
}

func outOfRangeFindings(column string, t TargetType, count int) []Finding {
	if count == 0 {
		return nil
	}
	lo, hi := IntegerMin, IntegerMax
	if t == TypeBigInteger {
		lo, hi = BigIntegerMin, BigIntegerMax
	}
	limit := fmt.Sprintf("[%d, %d]", lo, hi)

	msg := fmt.Sprintf("%d value(s) outside the %s range were clamped to %s", count, t, limit)
	if t == TypeInteger {
		msg += "; consider big_integer"
	}
	return []Finding{{
		Column:   column,
		Severity: SeverityHigh,
		Category: CategoryOutOfRange,
		Count:    count,
		Message:  msg,
		Limit:    limit,
	}}
}

func textFindings(column string, maxLength int, stats textStats) []Finding {
	var out []Finding
	if stats.cleaned > 0 {
		out = append(out, Finding{
			Column:   column,
			Severity: SeverityLow,
			Category: CategoryInvalidEncoding,
			Count:    stats.cleaned,
			Message:  fmt.Sprintf("%d value(s) had invalid characters or surrounding whitespace removed", stats.cleaned),
		})
	}
	if stats.truncated > 0 {
		out = append(out, Finding{
			Column:   column,
			Severity: SeverityMedium,
			Category: CategoryTruncated,
			Count:    stats.truncated,
			Message:  fmt.Sprintf("%d value(s) exceeded %d characters and were truncated", stats.truncated, maxLength),
			Limit:    fmt.Sprintf("%d", maxLength),
		})
	}
	return out
}

// SortFindings orders findings by column position in order, then by category.
// Columns missing from order sort last by name.
func SortFindings(findings []Finding, order []string) {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	rank := func(name string) int {
		if p, ok := pos[name]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := rank(a.Column), rank(b.Column); ra != rb {
			return ra < rb
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return categoryRank[a.Category] < categoryRank[b.Category]
	})
}

// FindingSummary totals findings per severity for display.
type FindingSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Values int `json:"values"` // corrected values across all findings
}

// Summarize counts findings by severity.
func Summarize(findings []Finding) FindingSummary {
	var s FindingSummary
	for _, f := range findings {
		switch f.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
		s.Values += f.Count
	}
	return s
}
