package frame

import (
	"errors"
	"testing"

	"firestige.xyz/woolong/internal/core"
)

func TestBufferAtBounds(t *testing.T) {
	buf := NewBuffer(make([]byte, 10))

	tests := []struct {
		name      string
		off, size int
		ok        bool
	}{
		{"whole", 0, 10, true},
		{"empty at end", 10, 0, true},
		{"tail", 6, 4, true},
		{"one past end", 7, 4, false},
		{"offset past end", 11, 0, false},
		{"negative offset", -1, 2, false},
		{"negative size", 2, -1, false},
		{"overflowing size", 1, int(^uint(0) >> 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := buf.At(tt.off, tt.size)
			if tt.ok {
				if err != nil {
					t.Fatalf("At(%d, %d) failed: %v", tt.off, tt.size, err)
				}
				if r.Len() != tt.size {
					t.Errorf("Expected region length %d, got %d", tt.size, r.Len())
				}
				return
			}
			if !errors.Is(err, core.ErrOutOfBounds) {
				t.Errorf("At(%d, %d): expected ErrOutOfBounds, got %v", tt.off, tt.size, err)
			}
		})
	}
}

func TestRegionIsCapped(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	r, err := NewBuffer(data).At(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	// A sub-region cannot reach past its parent even though the backing array continues.
	if _, err := r.At(1, 2); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("Expected sub-region past parent end to fail, got %v", err)
	}

	if n := r.CopyFrom([]byte{8, 9, 7}); n != 2 {
		t.Errorf("Expected 2 bytes copied, got %d", n)
	}
	if data[0] != 1 || data[1] != 8 || data[2] != 9 || data[3] != 4 {
		t.Errorf("CopyFrom touched bytes outside the region: %v", data)
	}
}

func TestRegionEqualAndWord(t *testing.T) {
	r, _ := NewBuffer([]byte("abcdefghij")).At(0, 10)

	if !r.Equal([]byte("abcdefghij")) {
		t.Error("Expected region to equal its own bytes")
	}
	if r.Equal([]byte("abcdefghiX")) {
		t.Error("Expected mismatch on last byte")
	}
	if r.Equal([]byte("abc")) {
		t.Error("Expected mismatch on length")
	}

	w, ok := r.Word64()
	if !ok || w != 0x6162636465666768 {
		t.Errorf("Word64 = %#x, %v", w, ok)
	}

	short, _ := r.At(0, 7)
	if _, ok := short.Word64(); ok {
		t.Error("Expected Word64 to fail on a 7-byte region")
	}
}
