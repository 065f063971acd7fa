package idhash

import "testing"

func TestComputeResultID(t *testing.T) {
	got := ComputeResultID("config-1", 7, "trigger_up_pct=0.03")

	if len(got) != 64 {
		t.Errorf("ComputeResultID() length = %d, want 64", len(got))
	}

	// Verify determinism: same inputs should produce same output
	got2 := ComputeResultID("config-1", 7, "trigger_up_pct=0.03")
	if got != got2 {
		t.Errorf("ComputeResultID() not deterministic: %s != %s", got, got2)
	}
}

func TestComputeResultID_DifferentInputs(t *testing.T) {
	base := ComputeResultID("config", 0, "key")

	if base == ComputeResultID("other_config", 0, "key") {
		t.Error("Different config should produce different hash")
	}
	if base == ComputeResultID("config", 1, "key") {
		t.Error("Different index should produce different hash")
	}
	if base == ComputeResultID("config", 0, "other_key") {
		t.Error("Different combination key should produce different hash")
	}
}
