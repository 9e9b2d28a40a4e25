package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name: "Leet speak and internal punctuation",
			// B (index 9) . 4 . d . g . € r (index 20) -> 10 characters
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			words:    []string{"snake", "badger"},
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Clean sentence stays untouched",
			input:    "Nothing wrong in here",
			expected: "Nothing wrong in here",
			words:    nil,
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			censored, matched := mod.Censor(tt.input)
			req.Equal(tt.expected, censored)
			req.Equal(tt.words, matched)
		})
	}
}

func TestNewModerator_EmptyWordList(t *testing.T) {
	req := require.New(t)
	_, err := NewModerator(nil, replacementChar)
	req.Error(err)
}

func TestWordListLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	loader := NewWordListLoader()

	data, err := loader.LoadAll()
	req.NoError(err)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.NotEmpty(data.Words)
}
