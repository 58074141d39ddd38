//go:build !sherpa

package sherpa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
)

func TestStubConstructorsReportBuildTag(t *testing.T) {
	require.False(t, Enabled)

	_, err := NewRecognizer(config.SherpaOnnxASR{}, "cpu")
	require.ErrorIs(t, err, fault.ErrConfiguration)
	require.ErrorContains(t, err, "-tags sherpa")

	_, err = NewSileroVAD(config.SileroVAD{}, "cpu")
	require.ErrorIs(t, err, fault.ErrConfiguration)

	_, err = NewDiarizer(config.Pyannote{}, "cpu", nil)
	require.ErrorIs(t, err, fault.ErrConfiguration)
}
