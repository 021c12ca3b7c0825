package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Moderation_Large_Dictionary(t *testing.T) {
	req := require.New(t)
	wordCount := 100_000

	// --- Phase 1: SEEDING ---
	var dict strings.Builder
	for i := 0; i < wordCount; i++ {
		fmt.Fprintln(&dict, dictionaryWord(i))
	}
	fsys := fstest.MapFS{"censored/en.txt": {Data: []byte(dict.String())}}

	// --- Phase 2: LOADING ---
	startLoad := time.Now()
	loaded, err := NewLoader(fsys).LoadAll("censored")
	req.NoError(err)
	req.Len(loaded.Words, wordCount)
	t.Logf("Loading %d words: %v", wordCount, time.Since(startLoad))

	// --- Phase 3: BUILDING AHO-CORASICK ---
	startBuild := time.Now()
	moderator, err := NewModerator(loaded.Words, '*', slog.Default())
	req.NoError(err)
	t.Logf("Building AC automaton: %v", time.Since(startBuild))

	// --- Phase 4: CENSORING ---
	startCensor := time.Now()
	banned := dictionaryWord(4242)
	censored, found := moderator.Censor("nothing to see, but " + banned + " is banned")
	t.Logf("Censoring one message: %v", time.Since(startCensor))
	req.Equal([]string{banned}, found)
	req.NotContains(censored, banned)
}

// dictionaryWord spells i in base 26 behind a fixed prefix, so that no word contains another.
func dictionaryWord(i int) string {
	letters := []byte("xqaaaa")
	for pos := len(letters) - 1; pos >= 2 && i > 0; pos-- {
		letters[pos] = byte('a' + i%26)
		i /= 26
	}
	return string(letters)
}

func BenchmarkModerator_Censor(b *testing.B) {
	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, dictionaryWord(i))
	}
	moderator, err := NewModerator(words, '*', slog.Default())
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("a perfectly normal sentence with "+dictionaryWord(99)+" inside ", 8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		moderator.Censor(text)
	}
}
