package hipaa

import (
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func newTestEncryptor(t *testing.T) *PHIEncryptor {
	t.Helper()
	enc, err := NewPHIEncryptor(generateTestKey(t))
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}
	return enc
}

func TestNewPHIEncryptor_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewPHIEncryptor(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
	if _, err := NewPHIEncryptor(make([]byte, 32)); err != nil {
		t.Errorf("unexpected error for 32-byte key: %v", err)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)
	cases := []string{
		"",
		"Metformin 500mg BID PO",
		"Paracetamol 500 mg PO (For: Pain) [Taken 2x in 24h]\nIbuprofen 400 mg PO",
		`{"regular":"Amlodipine 5mg OD","prn":""}`,
	}
	for _, plaintext := range cases {
		sealed, err := enc.Seal(plaintext)
		if err != nil {
			t.Fatalf("seal %q: %v", plaintext, err)
		}
		if !IsSealed(sealed) {
			t.Errorf("expected sealed prefix on %q", sealed)
		}
		if plaintext != "" && strings.Contains(sealed, plaintext) {
			t.Errorf("sealed value leaks plaintext %q", plaintext)
		}
		got, err := enc.Open(sealed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip: got %q, want %q", got, plaintext)
		}
	}
}

func TestSeal_NonceVaries(t *testing.T) {
	enc := newTestEncryptor(t)
	a, _ := enc.Seal("Metformin")
	b, _ := enc.Seal("Metformin")
	if a == b {
		t.Error("two seals of the same text should differ")
	}
}

func TestOpen_PlaintextPassesThrough(t *testing.T) {
	enc := newTestEncryptor(t)
	got, err := enc.Open(`{"regular":"Metformin","prn":""}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"regular":"Metformin","prn":""}` {
		t.Errorf("got %q", got)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, _ := newTestEncryptor(t).Seal("Warfarin 5mg")
	if _, err := newTestEncryptor(t).Open(sealed); err == nil {
		t.Fatal("expected error opening with a different key")
	}
}

func TestOpen_Tampered(t *testing.T) {
	enc := newTestEncryptor(t)
	if _, err := enc.Open(sealedPrefix + "!!!not-base64"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := enc.Open(sealedPrefix + "AAAA"); err == nil {
		t.Error("expected short ciphertext error")
	}
}

func TestNilEncryptor(t *testing.T) {
	var enc *PHIEncryptor
	s, err := enc.Seal("Metformin")
	if err != nil || s != "Metformin" {
		t.Errorf("nil Seal should store plaintext, got %q, %v", s, err)
	}
	if got, err := enc.Open("Metformin"); err != nil || got != "Metformin" {
		t.Errorf("nil Open should pass plaintext, got %q, %v", got, err)
	}
	sealed, _ := newTestEncryptor(t).Seal("Metformin")
	if _, err := enc.Open(sealed); !errors.Is(err, ErrNoKey) {
		t.Errorf("expected ErrNoKey, got %v", err)
	}
}
