package plot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() map[string][]float64 {
	return map[string][]float64{
		"TIME":  {0, 1e-3, 2e-3, 3e-3},
		"V(a)":  {0, 1, 2, 3},
		"V(b)":  {0, 0.5, 1, 1.5},
		"I(R1)": {0, 1e-3, 2e-3, 3e-3},
	}
}

func TestTraceNames(t *testing.T) {
	assert.Equal(t, []string{"V(a)", "V(b)"}, TraceNames(sampleResults(), "V("))
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), "V(", "divider", "V"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRenderWithoutTraces(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, sampleResults(), "P(", "none", "W"))
	assert.Error(t, Render(&buf, map[string][]float64{}, "V(", "none", "V"))
}

func TestSaveWritesBothFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, Save(path, sampleResults(), "divider"))

	_, err := os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "out_i.png"))
	assert.NoError(t, err)
}
