package local

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sequence length fed to the text models, including [CLS] and [SEP].
const maxSeqLen = 512

// wordpieceTokenizer implements BERT-style lowercased WordPiece
// tokenization against a vocab.txt vocabulary (token ID = line number).
type wordpieceTokenizer struct {
	tokenToID map[string]int64
	padID     int64
	unkID     int64
	clsID     int64
	sepID     int64
}

func loadTokenizer(vocabPath string) (*wordpieceTokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	tokenToID := make(map[string]int64, 32000)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokenToID[scanner.Text()] = int64(len(tokenToID))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if len(tokenToID) == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", vocabPath)
	}

	t := &wordpieceTokenizer{tokenToID: tokenToID}
	for _, s := range []struct {
		name string
		dest *int64
	}{
		{"[PAD]", &t.padID},
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
	} {
		id, ok := tokenToID[s.name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", s.name)
		}
		*s.dest = id
	}
	return t, nil
}

// encode converts text into padded input_ids and attention_mask slices of
// length maxSeqLen, with [CLS] and [SEP] added and overflow truncated.
func (t *wordpieceTokenizer) encode(text string) (inputIDs, attentionMask []int64) {
	tokens := t.wordpiece(basicTokenize(text))
	if len(tokens) > maxSeqLen-2 {
		tokens = tokens[:maxSeqLen-2]
	}

	ids := make([]int64, maxSeqLen)
	mask := make([]int64, maxSeqLen)
	ids[0] = t.clsID
	mask[0] = 1
	for i, tok := range tokens {
		id, ok := t.tokenToID[tok]
		if !ok {
			id = t.unkID
		}
		ids[i+1] = id
		mask[i+1] = 1
	}
	ids[len(tokens)+1] = t.sepID
	mask[len(tokens)+1] = 1
	return ids, mask
}

// wordpiece greedily decomposes each basic token into the longest matching
// vocabulary subwords, emitting [UNK] when no decomposition exists.
func (t *wordpieceTokenizer) wordpiece(tokens []string) []string {
	var out []string
	for _, token := range tokens {
		runes := []rune(token)
		if len(runes) == 0 {
			continue
		}
		if len(runes) > 200 {
			out = append(out, "[UNK]")
			continue
		}

		var subs []string
		start := 0
		for start < len(runes) {
			end := len(runes)
			found := false
			for end > start {
				sub := string(runes[start:end])
				if start > 0 {
					sub = "##" + sub
				}
				if _, ok := t.tokenToID[sub]; ok {
					subs = append(subs, sub)
					found = true
					break
				}
				end--
			}
			if !found {
				subs = []string{"[UNK]"}
				break
			}
			start = end
		}
		out = append(out, subs...)
	}
	return out
}

// basicTokenize cleans, lowercases, strips accents, and splits on
// whitespace and punctuation, matching BERT's BasicTokenizer.
func basicTokenize(text string) []string {
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case r == 0 || r == 0xFFFD || isControl(r):
			// drop
		case unicode.In(r, unicode.Mn):
			// drop combining accents
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		default:
			cleaned.WriteRune(r)
		}
	}

	var tokens []string
	for _, word := range strings.Fields(cleaned.String()) {
		var current strings.Builder
		for _, r := range word {
			if isPunctuation(r) {
				if current.Len() > 0 {
					tokens = append(tokens, current.String())
					current.Reset()
				}
				tokens = append(tokens, string(r))
			} else {
				current.WriteRune(r)
			}
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
		}
	}
	return tokens
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// BERT treats these ASCII ranges as punctuation in addition to the
	// Unicode punctuation categories.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
