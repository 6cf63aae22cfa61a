package local

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVocab lays out a small vocabulary; token ID = line index.
var testVocab = []string{
	"[PAD]",  // 0
	"[UNK]",  // 1
	"[CLS]",  // 2
	"[SEP]",  // 3
	"hello",  // 4
	"world",  // 5
	"un",     // 6
	"##aff",  // 7
	"##able", // 8
	"!",      // 9
}

func writeTestVocab(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0644))
	return path
}

func TestLoadTokenizerMissingSpecial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\nworld\n"), 0644))

	_, err := loadTokenizer(path)
	assert.ErrorContains(t, err, "missing special token")
}

func TestEncodeBasic(t *testing.T) {
	assert := assert.New(t)

	tok, err := loadTokenizer(writeTestVocab(t))
	require.NoError(t, err)

	ids, mask := tok.encode("Hello, world!")
	require.Len(t, ids, maxSeqLen)
	require.Len(t, mask, maxSeqLen)

	// [CLS] hello [UNK](,) world ! [SEP]
	assert.Equal([]int64{2, 4, 1, 5, 9, 3}, ids[:6])
	assert.Equal([]int64{1, 1, 1, 1, 1, 1}, mask[:6])
	assert.Equal(int64(0), ids[6])
	assert.Equal(int64(0), mask[6])
}

func TestEncodeWordpieceSubwords(t *testing.T) {
	tok, err := loadTokenizer(writeTestVocab(t))
	require.NoError(t, err)

	// "unaffable" decomposes greedily into un ##aff ##able
	ids, _ := tok.encode("unaffable")
	assert.Equal(t, []int64{2, 6, 7, 8, 3}, ids[:5])
}

func TestEncodeUnknownWord(t *testing.T) {
	tok, err := loadTokenizer(writeTestVocab(t))
	require.NoError(t, err)

	ids, _ := tok.encode("zzzzz")
	assert.Equal(t, []int64{2, 1, 3}, ids[:3])
}

func TestEncodeTruncatesOverflow(t *testing.T) {
	tok, err := loadTokenizer(writeTestVocab(t))
	require.NoError(t, err)

	ids, mask := tok.encode(strings.Repeat("hello ", maxSeqLen))
	assert.Equal(t, int64(2), ids[0])
	assert.Equal(t, int64(3), ids[maxSeqLen-1])
	assert.Equal(t, int64(1), mask[maxSeqLen-1])
}

func TestBasicTokenize(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"hello", ",", "world", "!"}, basicTokenize("Hello, World!"))
	assert.Equal([]string{"cafe"}, basicTokenize("Café"))
	assert.Empty(basicTokenize("   \t\n "))
	assert.Equal([]string{"ab"}, basicTokenize("a\u0000b"))
}
