package reflector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/frame"
)

func region(t *testing.T, b []byte) frame.Region {
	t.Helper()
	r, err := frame.NewBuffer(b).At(0, len(b))
	require.NoError(t, err)
	return r
}

func TestMatcher(t *testing.T) {
	full, err := NewMatcher([]byte("signature!"), MatchFull)
	require.NoError(t, err)
	prefix, err := NewMatcher([]byte("signature!"), MatchPrefix)
	require.NoError(t, err)

	tests := []struct {
		payload           string
		wantFull, wantPre bool
	}{
		{"signature!", true, true},
		{"signature!trailing", true, true},
		{"signaturX!", false, false},
		{"signatureX", false, true},
		{"signatur", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantFull, full.Match(region(t, []byte(tt.payload))), "full %q", tt.payload)
		assert.Equal(t, tt.wantPre, prefix.Match(region(t, []byte(tt.payload))), "prefix %q", tt.payload)
	}
}

func TestNewMatcherErrors(t *testing.T) {
	_, err := NewMatcher(nil, MatchFull)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = NewMatcher([]byte("short"), MatchPrefix)
	assert.ErrorIs(t, err, core.ErrPatternTooShort)
}

func TestParseModes(t *testing.T) {
	m, err := ParseMatchMode("prefix")
	require.NoError(t, err)
	assert.Equal(t, MatchPrefix, m)

	o, err := ParseOffsetMode("fixed")
	require.NoError(t, err)
	assert.Equal(t, OffsetFixed, o)

	c, err := ParseChecksumStrategy("incremental")
	require.NoError(t, err)
	assert.Equal(t, ChecksumIncremental, c)

	_, err = ParseMatchMode("regex")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	_, err = ParseOffsetMode("auto")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	_, err = ParseChecksumStrategy("none")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestModeStringsRoundTrip(t *testing.T) {
	for _, m := range []MatchMode{MatchFull, MatchPrefix} {
		got, err := ParseMatchMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	for _, o := range []OffsetMode{OffsetDataOffset, OffsetFixed} {
		got, err := ParseOffsetMode(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	for _, c := range []ChecksumStrategy{ChecksumFull, ChecksumIncremental} {
		got, err := ParseChecksumStrategy(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}
