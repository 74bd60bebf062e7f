package patterns

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultStopWords are dropped from common-pattern extraction. Short words are already
// excluded by the minimum term length, so only longer function words matter here.
var DefaultStopWords = []string{
	"about", "above", "after", "again", "against", "because", "before", "being",
	"below", "between", "could", "doing", "during", "further", "having", "itself",
	"other", "ourselves", "should", "their", "theirs", "themselves", "there",
	"these", "those", "through", "under", "until", "where", "which", "while",
	"would", "yourself", "please", "thanks", "issue", "incident", "ticket",
	"caller", "customer", "reported", "resolved", "closed",
}

// termCounter ranks terms by frequency, breaking ties by first appearance.
type termCounter struct {
	minLength int
	stopWords map[string]struct{}
	counts    map[string]int
	order     []string
}

func newTermCounter(minLength int, stopWords []string) *termCounter {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &termCounter{
		minLength: minLength,
		stopWords: stop,
		counts:    make(map[string]int),
	}
}

func (c *termCounter) add(text string) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		if len([]rune(word)) < c.minLength || isNumeric(word) {
			continue
		}
		if _, stop := c.stopWords[word]; stop {
			continue
		}
		if c.counts[word] == 0 {
			c.order = append(c.order, word)
		}
		c.counts[word]++
	}
}

func (c *termCounter) top(limit int) []string {
	ranked := append([]string(nil), c.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
