package afpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeSize(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
		pageSize int
	}{
		{"default", 8, 2048, 4096},
		{"jumbo", 64, 9000, 4096},
		{"small snap", 1, 128, 4096},
		{"large pages", 32, 2048, 65536},
		{"tiny budget", 1, 65535, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, block, blocks, err := recomputeSize(tt.bufferMB, tt.snapLen, tt.pageSize)
			require.NoError(t, err)

			assert.Zero(t, frame%tpacketAlignment, "frame aligned")
			assert.GreaterOrEqual(t, frame, tt.snapLen+tpacketHdrLen)
			assert.Zero(t, block%tt.pageSize, "block is whole pages")
			assert.Zero(t, block%frame, "block is whole frames")
			assert.GreaterOrEqual(t, blocks, 1)
			if block <= tt.bufferMB<<20 {
				assert.LessOrEqual(t, block*blocks, tt.bufferMB<<20)
			}
		})
	}
}

func TestRecomputeSizeInvalid(t *testing.T) {
	tests := []struct {
		name                       string
		bufferMB, snapLen, pageSiz int
	}{
		{"zero buffer", 0, 2048, 4096},
		{"negative snap", 8, -1, 4096},
		{"zero page", 8, 2048, 0},
		{"unaligned page", 8, 2048, 4100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := recomputeSize(tt.bufferMB, tt.snapLen, tt.pageSiz)
			assert.Error(t, err)
		})
	}
}

func TestGcdLcm(t *testing.T) {
	assert.Equal(t, 64, gcd(4096, 2112))
	assert.Equal(t, 135168, lcm(4096, 2112))
	assert.Equal(t, 0, lcm(0, 16))
	assert.Equal(t, 7, gcd(7, 0))
}
