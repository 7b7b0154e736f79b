package token

import (
	"regexp"
	"strings"
	"testing"
)

func TestChecksum_Deterministic(t *testing.T) {
	c := NewCodec("", 0, 0)

	first := c.Checksum("STU", "H7K2P9M3")
	second := c.Checksum("STU", "H7K2P9M3")
	if first != second {
		t.Errorf("checksum not deterministic: %q vs %q", first, second)
	}
	if len(first) != 2 {
		t.Errorf("checksum length = %d, expected 2", len(first))
	}
	for _, ch := range first {
		if !strings.ContainsRune(DefaultCharset, ch) {
			t.Errorf("checksum char %q outside charset", ch)
		}
	}
}

func TestChecksum_RollingSum(t *testing.T) {
	c := NewCodec("", 0, 0)

	// Recompute by hand: sum of char codes mod 32*32, split into two
	// base-32 digits.
	input := "STU_H7K2P9M3"
	acc := 0
	for _, ch := range input {
		acc = (acc + int(ch)) % (32 * 32)
	}
	expected := string(DefaultCharset[acc/32]) + string(DefaultCharset[acc%32])

	if got := c.Checksum("STU", "H7K2P9M3"); got != expected {
		t.Errorf("Checksum = %q, expected %q", got, expected)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	c := NewCodec("", 0, 0)

	value := c.Format("STU", "H7K2P9M3")
	parts, err := c.Parse(value)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", value, err)
	}
	if parts.Prefix != "STU" {
		t.Errorf("Prefix = %q, expected STU", parts.Prefix)
	}
	if parts.Hash != "H7K2P9M3" {
		t.Errorf("Hash = %q, expected H7K2P9M3", parts.Hash)
	}
	if parts.Type != TypeStudent {
		t.Errorf("Type = %q, expected STUDENT", parts.Type)
	}
	if !c.ValidChecksum(value) {
		t.Errorf("ValidChecksum(%q) = false, expected true", value)
	}
}

func TestParse_Failures(t *testing.T) {
	c := NewCodec("", 0, 0)

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"no separators", "STUH7K2P9M3X8"},
		{"two segments", "STU_H7K2P9M3"},
		{"four segments", "STU_H7K2_P9M3_X8"},
		{"hash too short", "STU_H7K2_X8"},
		{"hash too long", "STU_H7K2P9M3Q_X8"},
		{"checksum too long", "STU_H7K2P9M3_X8Q"},
		{"ambiguous char in hash", "STU_H0K2P9M3_X8"},
		{"lowercase hash", "STU_h7k2p9m3_X8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Parse(tt.value); err == nil {
				t.Errorf("Parse(%q) succeeded, expected error", tt.value)
			}
		})
	}
}

func TestParse_UnknownPrefix(t *testing.T) {
	c := NewCodec("", 0, 0)

	_, err := c.Parse("XXX_H7K2P9M3_X8")
	if err == nil {
		t.Fatal("Parse with unknown prefix succeeded")
	}
	if !strings.Contains(err.Error(), "unknown token type") {
		t.Errorf("error = %v, expected unknown token type", err)
	}
}

func TestValidChecksum_CaseInsensitive(t *testing.T) {
	c := NewCodec("", 0, 0)

	value := c.Format("TCH", "ABCDEFGH")
	segs := strings.Split(value, "_")
	lowered := segs[0] + "_" + segs[1] + "_" + strings.ToLower(segs[2])

	if !c.ValidChecksum(lowered) {
		t.Errorf("ValidChecksum should accept lowercase checksum %q", lowered)
	}
}

func TestValidChecksum_Tampered(t *testing.T) {
	c := NewCodec("", 0, 0)

	value := c.Format("CRS", "ABCDEFGH")
	segs := strings.Split(value, "_")

	// Flip the checksum to a different charset pair.
	wrong := "22"
	if segs[2] == wrong {
		wrong = "33"
	}
	tampered := segs[0] + "_" + segs[1] + "_" + wrong

	if c.ValidChecksum(tampered) {
		t.Errorf("ValidChecksum accepted tampered value %q", tampered)
	}
}

func TestRandomHash_CharsetAndLength(t *testing.T) {
	c := NewCodec("", 0, 0)
	pattern := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`)

	for i := 0; i < 50; i++ {
		hash, err := c.RandomHash()
		if err != nil {
			t.Fatalf("RandomHash failed: %v", err)
		}
		if !pattern.MatchString(hash) {
			t.Errorf("RandomHash() = %q, does not match %v", hash, pattern)
		}
	}
}

func TestNewSalt(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if len(salt) != 64 {
		t.Errorf("salt length = %d, expected 64", len(salt))
	}

	other, _ := NewSalt()
	if salt == other {
		t.Error("two salts should not collide")
	}
}

func TestNewCodec_CustomLengths(t *testing.T) {
	c := NewCodec("ABCDEF", 4, 2)

	value := c.Format("STU", "ABCD")
	if _, err := c.Parse(value); err != nil {
		t.Errorf("Parse(%q) with custom codec failed: %v", value, err)
	}
	if !c.ValidChecksum(value) {
		t.Errorf("ValidChecksum(%q) = false with custom codec", value)
	}
}
