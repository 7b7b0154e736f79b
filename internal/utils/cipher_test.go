package utils

import (
	"bytes"
	"testing"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher("some-shared-secret")
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	plaintext := []byte(`{"webhook_url":"https://vendor.example/notify"}`)
	sealed, err := c.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed payload should not contain plaintext")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open() = %q, expected %q", opened, plaintext)
	}
}

func TestCipher_DifferentNonces(t *testing.T) {
	c, _ := NewCipher("secret")

	a, _ := c.Seal([]byte("payload"))
	b, _ := c.Seal([]byte("payload"))

	if bytes.Equal(a, b) {
		t.Error("sealing the same payload twice should produce different output")
	}
}

func TestCipher_WrongKey(t *testing.T) {
	c1, _ := NewCipher("secret-one")
	c2, _ := NewCipher("secret-two")

	sealed, _ := c1.Seal([]byte("payload"))
	if _, err := c2.Open(sealed); err == nil {
		t.Error("opening with the wrong key should fail")
	}
}

func TestCipher_Tampered(t *testing.T) {
	c, _ := NewCipher("secret")

	sealed, _ := c.Seal([]byte("payload"))
	sealed[len(sealed)-1] ^= 0xff

	if _, err := c.Open(sealed); err == nil {
		t.Error("opening a tampered payload should fail")
	}
}

func TestCipher_TooShort(t *testing.T) {
	c, _ := NewCipher("secret")
	if _, err := c.Open([]byte{1, 2, 3}); err == nil {
		t.Error("opening a truncated payload should fail")
	}
}
