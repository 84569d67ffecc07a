package vault

import "testing"

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	h := hashPassword("correct horse battery staple")
	if !h.verify("correct horse battery staple") {
		t.Errorf("expected correct password to verify")
	}
	if h.verify("wrong password") {
		t.Errorf("expected wrong password to fail verification")
	}
}

func TestEncodeDecodePasswordHash_RoundTrip(t *testing.T) {
	h := hashPassword("a password")
	encoded := encodePasswordHash(h)

	decoded, err := decodePasswordHash(encoded)
	if err != nil {
		t.Fatalf("decodePasswordHash: %v", err)
	}
	if !decoded.verify("a password") {
		t.Errorf("expected decoded hash to verify the original password")
	}
	if decoded.verify("not the password") {
		t.Errorf("expected decoded hash to reject a wrong password")
	}
}

func TestEnvelope_SealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	env, err := newEnvelope(key)
	if err != nil {
		t.Fatalf("newEnvelope: %v", err)
	}

	plaintext := []byte("a secret value")
	aad := []byte("project-a")

	sealed, err := env.seal("object-1", plaintext, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	opened, err := env.open("object-1", sealed, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Errorf("expected round-tripped plaintext, got %q", opened)
	}
}

func TestEnvelope_WrongAADFailsToOpen(t *testing.T) {
	key := make([]byte, 32)
	env, _ := newEnvelope(key)
	sealed, err := env.seal("object-1", []byte("data"), []byte("aad-a"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.open("object-1", sealed, []byte("aad-b")); err == nil {
		t.Fatalf("expected open with mismatched aad to fail")
	}
}

func TestEnvelope_WrongObjectIDFailsToOpen(t *testing.T) {
	key := make([]byte, 32)
	env, _ := newEnvelope(key)
	sealed, err := env.seal("object-1", []byte("data"), []byte("aad"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.open("object-2", sealed, []byte("aad")); err == nil {
		t.Fatalf("expected open with a different derived key to fail")
	}
}

func TestNewEnvelope_RejectsWrongKeyLength(t *testing.T) {
	if _, err := newEnvelope(make([]byte, 16)); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
}
