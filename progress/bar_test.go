package progress

import (
	"strings"
	"testing"
)

func TestBarSetClamps(t *testing.T) {
	b := NewBar("adapter.safetensors")

	b.Set(-5, "loading")
	if got := b.Percent(); got != 0 {
		t.Fatalf("percent = %d, want 0", got)
	}

	b.Set(150, "done")
	if got := b.Percent(); got != 100 {
		t.Fatalf("percent = %d, want 100", got)
	}
}

func TestBarString(t *testing.T) {
	b := NewBar("adapter.safetensors")
	b.Set(42, "Merging attention groups...")

	s := b.String()
	for _, want := range []string{"adapter.safetensors", "42%", "Merging attention groups..."} {
		if !strings.Contains(s, want) {
			t.Fatalf("render %q missing %q", s, want)
		}
	}
}
