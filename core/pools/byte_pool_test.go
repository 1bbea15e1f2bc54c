package pools

import "testing"

func TestBytePool_TierSizing(t *testing.T) {
	bp := NewBytePool()

	tests := []struct {
		request int
		wantCap int
	}{
		{100, 512},
		{512, 512},
		{513, 4096},
		{8000, 8192},
		{65536, 65536},
	}
	for _, tt := range tests {
		buf := bp.Get(tt.request)
		if len(buf) != tt.request {
			t.Errorf("Get(%d) len = %d", tt.request, len(buf))
		}
		if cap(buf) != tt.wantCap {
			t.Errorf("Get(%d) cap = %d, want %d", tt.request, cap(buf), tt.wantCap)
		}
		bp.Put(buf)
	}
}

func TestBytePool_OversizeAllocatesDirectly(t *testing.T) {
	bp := NewBytePool()

	buf := bp.Get(1 << 20)
	if len(buf) != 1<<20 {
		t.Errorf("len = %d", len(buf))
	}
	bp.Put(buf) // no tier matches; dropped for the GC
}
