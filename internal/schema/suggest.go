package schema

import "sort"

// SuggestTables returns catalog table names within a small edit distance of
// the unknown name, closest first. Used for validation warnings like
// "unknown table custmers, did you mean customers".
func (m *Manager) SuggestTables(name string, max int) []string {
	return suggest(NormalizeTableName(name), m.TableNames(), max)
}

// SuggestColumns does the same for column names under a known table.
func (m *Manager) SuggestColumns(table, column string, max int) []string {
	return suggest(column, m.ColumnNames(table), max)
}

func suggest(target string, candidates []string, max int) []string {
	if target == "" || max <= 0 {
		return nil
	}
	// Distance cap scales with word length; short names tolerate one edit.
	limit := 1
	if len(target) > 4 {
		limit = 2
	}

	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		if c == target {
			continue
		}
		if d := editDistance(target, c); d <= limit {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })
	if len(matches) > max {
		matches = matches[:max]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// editDistance is the Levenshtein distance with two rolling rows.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
