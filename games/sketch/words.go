/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed words.txt
var defaultWords string

// Recent words a session will not draw again, capped by pool size.
const recentWordWindow = 32

// WordPool is an immutable list of candidate secret words.
type WordPool struct {
	words []string
}

// DefaultWords returns the word list compiled into the binary.
func DefaultWords() *WordPool {
	wp, err := ParseWords(strings.NewReader(defaultWords))
	if err != nil {
		panic("embedded word list: " + err.Error())
	}

	return wp
}

// LoadWords reads a word list from path, one word per line.
func LoadWords(path string) (*WordPool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wp, err := ParseWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return wp, nil
}

// ParseWords reads one word per line. Blank lines and lines starting with #
// are skipped, and duplicates (after guess normalization) are dropped.
func ParseWords(r io.Reader) (*WordPool, error) {
	seen := make(map[string]bool)
	words := []string{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := normalizeGuess(line)
		if seen[key] {
			continue
		}
		seen[key] = true

		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}

	return &WordPool{words: words}, nil
}

func (wp *WordPool) Len() int {
	return len(wp.words)
}

// window is how many recent words are excluded from the next pick.
func (wp *WordPool) window() int {
	return min(len(wp.words)-1, recentWordWindow)
}

// pick returns a uniformly random word that is not in recent.
func (wp *WordPool) pick(recent []string) string {
	candidates := make([]string, 0, len(wp.words))
	for _, w := range wp.words {
		if !slices.Contains(recent, w) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		candidates = wp.words
	}

	return candidates[rand.IntN(len(candidates))]
}

// normalizeGuess folds case and compatibility forms, then trims and
// collapses whitespace, so " Ice   CREAM " matches "ice cream".
func normalizeGuess(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))

	return strings.Join(strings.Fields(folded), " ")
}
