// Package phoneme converts plain text into the phoneme token sequence the
// speech model consumes. Words are resolved against a CMU-style dictionary
// using greedy longest-match with left-to-right backtracking.
package phoneme

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// fallbackPhonemes is spoken when no dictionary is available. Degraded but
// deterministic: every request produces the same sentence.
const fallbackPhonemes = "W AH1 N S AH0 P AA1 N AH0 T AY1 M , AH0 F R AA1 G M EH1 T AH0 P R IH1 N S EH0 S . DH AH0 F R AA1 G K IH1 S T DH AH0 P R IH1 N S EH0 S AH0 N D B IH0 K EY1 M AH0 P R IH1 N S ."

const commentMarker = ";;;"

var numberReplacer = strings.NewReplacer(
	"0", " ZERO ",
	"1", " ONE ",
	"2", " TWO ",
	"3", " THREE ",
	"4", " FOUR ",
	"5", " FIVE ",
	"6", " SIX ",
	"7", " SEVEN ",
	"8", " EIGHT ",
	"9", " NINE ",
)

// Decoder holds the immutable pronunciation dictionary.
type Decoder struct {
	entries map[string]string
}

// NewDecoder loads the dictionary from path. An empty path or a load failure
// yields a decoder without a dictionary; Decode then returns the fallback
// sentence for every input.
func NewDecoder(path string, log *slog.Logger) *Decoder {
	if path == "" {
		log.Warn("no phoneme dictionary configured, using fallback phonemes")
		return &Decoder{}
	}
	entries, err := readDictionary(path)
	if err != nil {
		log.Warn("failed to load phoneme dictionary, using fallback phonemes",
			slog.String("path", path), slog.String("error", err.Error()))
		return &Decoder{}
	}
	log.Info("phoneme dictionary loaded", slog.String("path", path), slog.Int("entries", len(entries)))
	return &Decoder{entries: entries}
}

// NewDecoderFromEntries builds a decoder from an in-memory dictionary.
// Punctuation self-mappings are added the same way as for file loads.
func NewDecoderFromEntries(entries map[string]string) *Decoder {
	merged := make(map[string]string, len(entries)+5)
	for k, v := range entries {
		merged[k] = v
	}
	addPunctuation(merged)
	return &Decoder{entries: merged}
}

func readDictionary(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer file.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := fields[0]
		if key == commentMarker {
			continue
		}
		entries[key] = strings.Join(fields[1:], " ")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	addPunctuation(entries)
	return entries, nil
}

// Punctuation passes through as its own phoneme.
func addPunctuation(entries map[string]string) {
	for _, p := range []string{",", ".", "!", "?", "\""} {
		entries[p] = p
	}
}

// HasDictionary reports whether a pronunciation dictionary was loaded.
func (d *Decoder) HasDictionary() bool {
	return len(d.entries) > 0
}

// ExpandNumbers replaces each digit with its spoken word, padded with spaces
// so digit runs split into separate words.
func ExpandNumbers(text string) string {
	return numberReplacer.Replace(text)
}

// Decode converts text into a space-separated phoneme string. The phoneme
// groups of consecutive input words concatenate in input order.
func (d *Decoder) Decode(text string) string {
	if !d.HasDictionary() {
		return fallbackPhonemes
	}

	var out strings.Builder
	text = strings.ToUpper(ExpandNumbers(text))
	for _, word := range strings.Fields(text) {
		out.WriteString(d.decodeWord(word))
	}
	return out.String()
}

// decodeWord resolves one word by scanning for the longest dictionary entry
// matching at the current position, then resuming past the matched span.
// A position with no match at any length is skipped one character at a time;
// the dropped character produces no phoneme.
func (d *Decoder) decodeWord(word string) string {
	var out strings.Builder
	start := 0
	for end := len(word); end >= 0 && start < len(word); end-- {
		if end <= start {
			// no match at any length from start
			start++
			end = len(word) + 1
			continue
		}
		if value, ok := d.entries[word[start:end]]; ok {
			out.WriteString(value)
			out.WriteByte(' ')
			start = end
			end = len(word) + 1
		}
	}
	return out.String()
}
