// Package fallback supplies canned replies when generation is unavailable.
package fallback

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
)

// ErrEmptyCorpus is returned when a corpus is built from no entries.
var ErrEmptyCorpus = errors.New("fallback corpus is empty")

// Corpus is a fixed, ordered list of replies with uniform random selection.
// It is safe for concurrent use.
type Corpus struct {
	entries []string

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a corpus over entries drawing from src. A nil src uses a
// randomly seeded PCG source.
func New(entries []string, src rand.Source) (*Corpus, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Corpus{
		entries: slices.Clone(entries),
		rng:     rand.New(src),
	}, nil
}

// Pick returns one entry chosen uniformly at random.
func (c *Corpus) Pick() string {
	c.mu.Lock()
	i := c.rng.IntN(len(c.entries))
	c.mu.Unlock()
	return c.entries[i]
}

// Contains reports whether text is one of the corpus entries.
func (c *Corpus) Contains(text string) bool {
	return slices.Contains(c.entries, text)
}

// Len is the number of entries.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the corpus in order.
func (c *Corpus) Entries() []string {
	return slices.Clone(c.entries)
}
