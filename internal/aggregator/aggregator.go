package aggregator

import "sort"

// PatternCount represents a concrete pattern and its match count
type PatternCount struct {
	Pattern string `json:"pattern" msgpack:"pattern"`
	Count   int    `json:"count" msgpack:"count"`
}

// ResultMap maps a concrete pattern, exactly as supplied, to its match count
type ResultMap map[string]int

// NestedResultMap maps a candidate word to the ResultMap of its expanded templates
type NestedResultMap map[string]ResultMap

// Aggregator merges per-pattern counts into a ResultMap. It is owned by the
// coordinator and fed only after every unit has finished, so it holds no lock.
type Aggregator struct {
	counts       ResultMap
	totalMatches int
	patterns     int
}

// New creates a new Aggregator
func New() *Aggregator {
	return &Aggregator{
		counts: make(ResultMap),
	}
}

// Add records the count for one pattern. A pattern seen again replaces the earlier count.
func (a *Aggregator) Add(pattern string, count int) {
	if previous, ok := a.counts[pattern]; ok {
		a.totalMatches -= previous
	} else {
		a.patterns++
	}
	a.counts[pattern] = count
	a.totalMatches += count
}

// AddAll records counts[i] for patterns[i] in input order
func (a *Aggregator) AddAll(patterns []string, counts []int) {
	for i, pattern := range patterns {
		a.Add(pattern, counts[i])
	}
}

// Result returns the merged ResultMap
func (a *Aggregator) Result() ResultMap {
	return a.counts
}

// GetStats returns the number of distinct patterns and their summed counts
func (a *Aggregator) GetStats() (patterns int, totalMatches int) {
	return a.patterns, a.totalMatches
}

// Nest builds a NestedResultMap from per-word results in input order, last duplicate word wins
func Nest(words []string, results []ResultMap) NestedResultMap {
	nested := make(NestedResultMap, len(words))
	for i, word := range words {
		nested[word] = results[i]
	}
	return nested
}

// Top returns the top N patterns of result by count
func Top(result ResultMap, n int) []PatternCount {
	// Convert map to slice for sorting
	entries := make([]PatternCount, 0, len(result))
	for pattern, count := range result {
		entries = append(entries, PatternCount{Pattern: pattern, Count: count})
	}

	// Sort by count (descending), then by pattern (ascending) for stable results
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count == entries[j].Count {
			return entries[i].Pattern < entries[j].Pattern
		}
		return entries[i].Count > entries[j].Count
	})

	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// Total sums every count in result
func Total(result ResultMap) int {
	total := 0
	for _, count := range result {
		total += count
	}
	return total
}
