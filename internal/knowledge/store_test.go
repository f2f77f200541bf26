package knowledge

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeFloat32Blob(t *testing.T) {
	values := []float32{0.5, -1.25, 3}
	blob := encodeFloat32Blob(values)

	if len(blob) != len(values)*4 {
		t.Fatalf("Expected %d bytes, got %d", len(values)*4, len(blob))
	}
	for i, want := range values {
		got := math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
		if got != want {
			t.Errorf("Value %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestHasAnyTag(t *testing.T) {
	chunkTags := []string{"pricing", "scope"}

	if !hasAnyTag(chunkTags, []string{"scope"}) {
		t.Error("Expected match on shared tag")
	}
	if hasAnyTag(chunkTags, []string{"timeline"}) {
		t.Error("Expected no match on disjoint tags")
	}
	if hasAnyTag(nil, []string{"pricing"}) {
		t.Error("Expected no match for untagged chunk")
	}
}
