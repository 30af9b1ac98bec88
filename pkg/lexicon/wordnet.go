package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// wordNetPOS lists the WordNet database files, one per part of speech.
var wordNetPOS = []string{"noun", "verb", "adj", "adv"}

// detachment strips suffix from an inflected word and appends ending.
type detachment struct {
	suffix, ending string
}

// detachments are WordNet's morphological substitution rules per part of
// speech. Adverbs have none.
var detachments = map[string][]detachment{
	"noun": {
		{"s", ""}, {"ses", "s"}, {"ves", "f"}, {"xes", "x"}, {"zes", "z"},
		{"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"},
	},
	"verb": {
		{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""},
		{"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""},
	},
	"adj": {
		{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"},
	},
}

// WordNet answers synonym lookups from a WordNet 3.x database directory.
// A word's synonyms are the lemma names of every synset it appears in,
// looked up under the word itself and its base forms.
type WordNet struct {
	synsets    [][]string
	synsetPOS  []string
	index      map[string][]int
	exceptions map[string][]string
}

// LoadWordNet reads data.{noun,verb,adj,adv} and the optional *.exc
// exception lists from dir. At least one data file must be present.
func LoadWordNet(dir string) (*WordNet, error) {
	wn := &WordNet{
		index:      make(map[string][]int),
		exceptions: make(map[string][]string),
	}

	loaded := 0
	for _, pos := range wordNetPOS {
		path := filepath.Join(dir, "data."+pos)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("open wordnet data file: %w", err)
		}
		err = wn.readData(f, pos)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		loaded++

		if err := wn.readExceptions(filepath.Join(dir, pos+".exc")); err != nil {
			return nil, err
		}
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no wordnet data files found in %s", dir)
	}
	return wn, nil
}

func (wn *WordNet) readData(f *os.File, pos string) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		// License header lines start with two spaces.
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}
		words, err := parseSynsetWords(line)
		if err != nil {
			return err
		}
		if len(words) == 0 {
			continue
		}
		id := len(wn.synsets)
		wn.synsets = append(wn.synsets, words)
		wn.synsetPOS = append(wn.synsetPOS, pos)
		for _, w := range words {
			wn.index[w] = append(wn.index[w], id)
		}
	}
	return scanner.Err()
}

// parseSynsetWords extracts the lemma names from a data file line:
//
//	synset_offset lex_filenum ss_type w_cnt word lex_id [word lex_id...] p_cnt ...
func parseSynsetWords(line string) ([]string, error) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed synset line %q", truncateLine(line))
	}

	count, err := strconv.ParseInt(fields[3], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed word count %q: %w", fields[3], err)
	}
	if len(fields) < 4+int(count)*2 {
		return nil, fmt.Errorf("synset line %q is shorter than its word count", truncateLine(line))
	}

	words := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		w := fields[4+i*2]
		// Adjective markers such as "(a)" or "(ip)" are attached to the lemma.
		if p := strings.IndexByte(w, '('); p > 0 {
			w = w[:p]
		}
		words = append(words, strings.ToLower(w))
	}
	return words, nil
}

// readExceptions loads irregular inflections, e.g. "children child".
func (wn *WordNet) readExceptions(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wordnet exception file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		inflected := strings.ToLower(fields[0])
		for _, base := range fields[1:] {
			wn.exceptions[inflected] = append(wn.exceptions[inflected], strings.ToLower(base))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// Synonyms implements Lexicon.
func (wn *WordNet) Synonyms(word string) []string {
	word = normalizeWord(word)
	if word == "" {
		return nil
	}

	seen := make(map[int]struct{})
	out := make(map[string]struct{})
	for _, form := range wn.lemmaForms(word) {
		for _, id := range wn.index[form] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			for _, w := range wn.synsets[id] {
				out[w] = struct{}{}
			}
		}
	}
	return sortedKeys(out)
}

// lemmaForms returns the word, its singular, its listed exceptions and
// every suffix detachment that names a lemma of the matching part of speech.
func (wn *WordNet) lemmaForms(word string) []string {
	forms := baseForms(word)
	forms = append(forms, wn.exceptions[word]...)
	for _, pos := range wordNetPOS {
		for _, d := range detachments[pos] {
			if !strings.HasSuffix(word, d.suffix) || len(word) == len(d.suffix) {
				continue
			}
			base := strings.TrimSuffix(word, d.suffix) + d.ending
			if wn.hasLemma(base, pos) && !slices.Contains(forms, base) {
				forms = append(forms, base)
			}
		}
	}
	return forms
}

func (wn *WordNet) hasLemma(word, pos string) bool {
	for _, id := range wn.index[word] {
		if wn.synsetPOS[id] == pos {
			return true
		}
	}
	return false
}

// Synsets returns the number of synsets loaded.
func (wn *WordNet) Synsets() int {
	return len(wn.synsets)
}

func truncateLine(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
