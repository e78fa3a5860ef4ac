package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 20)
	addr := NewAddress(AccountPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("encoded = %s, want %s prefix", encoded, AccountPrefix)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch")
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("prefix = %s, want %s", decoded.Prefix(), AccountPrefix)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("garbage must not decode")
	}
}

func TestAddressZeroAndEqual(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatalf("zero value must report zero")
	}
	allZero := NewAddress(ModulePrefix, make([]byte, 20))
	if !allZero.IsZero() {
		t.Fatalf("all-zero bytes must report zero")
	}

	a := NewAddress(AccountPrefix, bytes.Repeat([]byte{0x01}, 20))
	b := NewAddress(ModulePrefix, bytes.Repeat([]byte{0x01}, 20))
	if !a.Equal(b) {
		t.Fatalf("equality ignores the prefix")
	}
	c := NewAddress(AccountPrefix, bytes.Repeat([]byte{0x02}, 20))
	if a.Equal(c) {
		t.Fatalf("different bytes must not compare equal")
	}
}

func TestKeyDerivesAccountAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != AccountPrefix {
		t.Fatalf("prefix = %s, want %s", addr.Prefix(), AccountPrefix)
	}
	if len(addr.Bytes()) != 20 {
		t.Fatalf("address length = %d, want 20", len(addr.Bytes()))
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.PubKey().Address().Equal(addr) {
		t.Fatalf("restored key must derive the same address")
	}
}
