package apikey

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	raw, hash, prefix := generateAPIKey()

	if !strings.HasPrefix(raw, "bn_") {
		t.Errorf("raw key = %q, want bn_ prefix", raw)
	}
	if prefix != raw[:10] {
		t.Errorf("prefix = %q, want %q", prefix, raw[:10])
	}
	if hash == "" || hash == raw {
		t.Errorf("hash = %q, want a non-empty digest distinct from the raw key", hash)
	}
}

func TestGenerateAPIKeyUnique(t *testing.T) {
	raw1, hash1, _ := generateAPIKey()
	raw2, hash2, _ := generateAPIKey()

	if raw1 == raw2 {
		t.Error("generateAPIKey should not produce the same raw key twice")
	}
	if hash1 == hash2 {
		t.Error("generateAPIKey should not produce the same hash twice")
	}
}
