package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/colorboost/internal/imageio"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
	"github.com/MeKo-Tech/colorboost/internal/sample"
)

func TestWriteSample(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sample.png")
	p := sample.DefaultParams(16, 7)

	written, err := writeSample(p, out, -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{out}, written)

	_, err = writeSample(p, out, -1, false)
	require.Error(t, err, "existing output requires --force")

	written, err = writeSample(p, out, 80, true)
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(out), "sample_boosted.png"), written[1])

	orig, _, err := imageio.Load(written[0])
	require.NoError(t, err)
	boosted, _, err := imageio.Load(written[1])
	require.NoError(t, err)
	assert.Equal(t, orig.Bounds(), boosted.Bounds())
	assert.NotEqual(t, orig.Pix, boosted.Pix)
}

func TestWriteSampleRejectsBadIntensity(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sample.png")
	_, err := writeSample(sample.DefaultParams(8, 1), out, 150, false)
	require.ErrorIs(t, err, intensity.ErrOutOfRange)
}
