package model

import (
	"testing"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

func TestRegistryCheckCaseInsensitive(t *testing.T) {
	r := NewRegistry("LTO8, lto7 ,T10000D")
	cases := map[string]bool{
		"LTO8":    true,
		"lto8":    true,
		"Lto7":    true,
		"t10000d": true,
		"LTO6":    false,
		"":        false,
	}
	for model, want := range cases {
		if got := r.Check(model); got != want {
			t.Errorf("Check(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestRegistryEmptyConfig(t *testing.T) {
	r := NewRegistry("")
	if r.Check("LTO8") {
		t.Error("empty registry should reject all models")
	}
}

func TestInitOnceThenAlreadyInitialized(t *testing.T) {
	t.Cleanup(resetForTesting)
	resetForTesting()

	if err := Init("LTO8"); err != nil {
		t.Fatalf("first Init() = %v, want nil", err)
	}
	if !Default().Check("LTO8") {
		t.Error("expected LTO8 to be supported after Init")
	}

	err := Init("LTO9")
	if dsserr.KindOf(err) != dsserr.AlreadyInitialized {
		t.Fatalf("second Init() kind = %v, want AlreadyInitialized", dsserr.KindOf(err))
	}
	// The second call must be a no-op: LTO9 should still be unsupported.
	if Default().Check("LTO9") {
		t.Error("second Init() must not have mutated the registry")
	}
}
