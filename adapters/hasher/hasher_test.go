package hasher_test

import (
	"testing"

	"github.com/artpar/modelwire/adapters/hasher"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndCompare(t *testing.T) {
	h := hasher.NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if string(hash) == "s3cret" {
		t.Error("hash should differ from plaintext")
	}
	if !hasher.IsHash(string(hash)) {
		t.Errorf("IsHash(%q) = false", hash)
	}
	if !h.Compare(hash, "s3cret") {
		t.Error("Compare() should accept the original plaintext")
	}
	if h.Compare(hash, "wrong") {
		t.Error("Compare() should reject a different plaintext")
	}
}

func TestBcrypt_InvalidCostDefaults(t *testing.T) {
	for _, cost := range []int{1, 100} {
		h := hasher.NewBcrypt(cost)
		hash, err := h.Hash("x")
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		got, err := bcrypt.Cost(hash)
		if err != nil {
			t.Fatalf("Cost() error = %v", err)
		}
		if got != bcrypt.DefaultCost {
			t.Errorf("cost(%d) = %d, want %d", cost, got, bcrypt.DefaultCost)
		}
	}
}

func TestIsHash(t *testing.T) {
	valid := "$2a$10$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ01234"
	tests := map[string]bool{
		"plain":   false,
		"":        false,
		"$2a$10$": false,
		valid:     true,
	}
	for in, want := range tests {
		if got := hasher.IsHash(in); got != want {
			t.Errorf("IsHash(%q) = %v, want %v (len %d)", in, got, want, len(in))
		}
	}
}

func TestFake(t *testing.T) {
	h := hasher.Fake{}
	hash, _ := h.Hash("pw")
	if !h.Compare(hash, "pw") || h.Compare(hash, "other") {
		t.Error("Fake.Compare mismatch")
	}
}
