package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, AddressLength)
	addr, err := NewAddress(BazaarPrefix, raw)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(BazaarPrefix)+"1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatalf("round trip mismatch: %x != %x", decoded.Raw(), addr.Raw())
	}
	if decoded.Prefix() != BazaarPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress(BazaarPrefix, []byte{0x01}); err == nil {
		t.Fatal("expected length rejection")
	}
	if _, err := NewAddress(BazaarPrefix, bytes.Repeat([]byte{0x01}, AddressLength+1)); err == nil {
		t.Fatal("expected length rejection")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	foreign := MustNewAddress("cosmos", bytes.Repeat([]byte{0x01}, AddressLength))
	if _, err := DecodeAddress(foreign.String()); err == nil {
		t.Fatal("expected foreign prefix rejection")
	}
	if _, err := DecodeAddress("not bech32 at all"); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestAddressBytesIsACopy(t *testing.T) {
	addr := MustNewAddress(BazaarPrefix, bytes.Repeat([]byte{0x07}, AddressLength))
	b := addr.Bytes()
	b[0] = 0xFF
	if addr.Raw()[0] != 0x07 {
		t.Fatal("Bytes aliases internal state")
	}
}

func TestKeyDerivation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != BazaarPrefix {
		t.Fatalf("unexpected prefix %q", addr.Prefix())
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address() != addr {
		t.Fatal("restored key derives a different address")
	}

	other, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if other.PubKey().Address() == addr {
		t.Fatal("two fresh keys derived the same address")
	}
}
