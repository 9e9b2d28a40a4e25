package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"educhat/errors"
)

//go:embed wordlists/*
var wordListFolder embed.FS

// WordListData carries the result of the loading process including metadata for logging.
type WordListData struct {
	Words     []string
	Languages []string
}

// WordListLoader reads and parses blacklisted words from embedded files.
type WordListLoader struct {
	fs embed.FS
}

func NewWordListLoader() *WordListLoader {
	return &WordListLoader{fs: wordListFolder}
}

// LoadAll scans the wordlists directory in the embedded FS, identifying .txt
// files as language dictionaries and parsing their contents into a unique
// list of words.
func (l *WordListLoader) LoadAll() (*WordListData, error) {
	entries, err := fs.ReadDir(l.fs, "wordlists")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Track the language based on the filename (e.g., "fr.txt" -> "fr")
		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		data, err := l.fs.ReadFile("wordlists/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// Use a scanner to handle different line endings (\n vs \r\n) correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWordList
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &WordListData{
		Words:     words,
		Languages: languages,
	}, nil
}
