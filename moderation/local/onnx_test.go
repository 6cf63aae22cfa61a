package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankLogits(t *testing.T) {
	assert := assert.New(t)

	ranked := rankLogits([]float32{1.0, 3.0, 2.0}, []string{"safe", "nsfw", "sexy"})
	require.Len(t, ranked, 3)

	assert.Equal("nsfw", ranked[0].label)
	assert.Equal("sexy", ranked[1].label)
	assert.Equal("safe", ranked[2].label)

	var sum float64
	for _, r := range ranked {
		sum += r.score
	}
	assert.InDelta(1.0, sum, 1e-9)
	assert.Greater(ranked[0].score, ranked[1].score)
}

func TestRankLogitsExtremeValues(t *testing.T) {
	// large logits must not overflow the softmax
	ranked := rankLogits([]float32{1000, 999}, []string{"a", "b"})
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].label)
	assert.False(t, ranked[0].score > 1.0)
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("SAFE\nNSFW\n\n"), 0644))

	labels, err := loadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SAFE", "NSFW"}, labels)

	_, err = loadLabels(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestModelDir(t *testing.T) {
	assert.Equal(t, filepath.Join("models", "org", "nsfw-detector"), modelDir("models", "org/nsfw-detector"))
}

func TestRuntimeLibPathOverride(t *testing.T) {
	t.Setenv("ONNXRUNTIME_LIB_PATH", "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", runtimeLibPath("models"))

	t.Setenv("ONNXRUNTIME_LIB_PATH", "")
	assert.Equal(t, filepath.Join("models", "libonnxruntime.so"), runtimeLibPath("models"))
}
