package moderation

import (
	"chat-relay/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	// Given two dictionaries sharing a word, and a file that is not a dictionary
	fsys := fstest.MapFS{
		"censored/en.txt":    {Data: []byte("spam\r\nscam\n\n")},
		"censored/fr.txt":    {Data: []byte("arnaque\nspam\n")},
		"censored/README.md": {Data: []byte("ignored")},
	}

	// When loading the directory
	dict, err := NewLoader(fsys).LoadAll("censored")

	// Then words are merged without duplicates
	req.NoError(err)
	req.ElementsMatch([]string{"spam", "scam", "arnaque"}, dict.Words)
	req.ElementsMatch([]string{"en", "fr"}, dict.Languages)
}

func TestLoader_Empty_Directory(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"censored/en.txt": {Data: []byte("\n  \n")}}

	_, err := NewLoader(fsys).LoadAll("censored")

	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestLoader_Missing_Directory(t *testing.T) {
	req := require.New(t)

	_, err := NewLoader(fstest.MapFS{}).LoadAll("censored")

	req.Error(err)
}
