package names

import (
	_ "embed"
	"strings"

	"github.com/mcoot/playeraccounts/internal/dependencies/random"
)

//go:embed adjectives.txt
var adjectivesFile string

//go:embed nouns.txt
var nounsFile string

const (
	minWordLength = 3
	maxWordLength = 7
)

// Generator produces alliterative placeholder screennames such as "Brave Badger"
type Generator struct {
	random     random.Random
	adjectives []string
	nouns      []string
}

// New creates a Generator from the embedded word lists
func New(rng random.Random) *Generator {
	return NewWithWords(rng, parseWords(adjectivesFile), parseWords(nounsFile))
}

// NewWithWords creates a Generator from explicit word lists
func NewWithWords(rng random.Random, adjectives, nouns []string) *Generator {
	return &Generator{
		random:     rng,
		adjectives: filterWords(adjectives),
		nouns:      filterWords(nouns),
	}
}

// Next returns a new screenname. The noun shares the adjective's first letter
// when the word list allows it.
func (g *Generator) Next() string {
	if len(g.adjectives) == 0 || len(g.nouns) == 0 {
		return ""
	}
	adjective := g.adjectives[g.random.Intn(len(g.adjectives))]

	var matches []string
	for _, n := range g.nouns {
		if n[0] == adjective[0] {
			matches = append(matches, n)
		}
	}
	if len(matches) == 0 {
		matches = g.nouns
	}
	noun := matches[g.random.Intn(len(matches))]

	return capitalize(adjective) + " " + capitalize(noun)
}

func parseWords(file string) []string {
	return strings.Fields(file)
}

func filterWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if len(w) < minWordLength || len(w) > maxWordLength || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func capitalize(s string) string {
	return strings.ToUpper(s[:1]) + s[1:]
}
