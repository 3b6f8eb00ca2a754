package service

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers_RoundTrip(t *testing.T) {
	hashers := map[string]PasswordHasher{
		"bcrypt":   NewBcryptHasher(bcrypt.MinCost),
		"argon2id": NewArgon2idHasher(),
	}
	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			digest, err := h.Hash("p1")
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if digest == "p1" {
				t.Fatalf("digest must not be the plaintext")
			}

			ok, err := h.Verify("p1", digest)
			if err != nil || !ok {
				t.Fatalf("expected match, got %v,%v", ok, err)
			}
			ok, err = h.Verify("p2", digest)
			if err != nil || ok {
				t.Fatalf("expected mismatch, got %v,%v", ok, err)
			}

			again, err := h.Hash("p1")
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if again == digest {
				t.Fatalf("expected salted digests to differ")
			}
		})
	}
}

func TestPasswordHasher_RejectsEmpty(t *testing.T) {
	if _, err := NewBcryptHasher(bcrypt.MinCost).Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := NewArgon2idHasher().Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestPasswordHasher_MalformedDigestIsError(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	const salt = "c2FsdHNhbHRzYWx0c2FsdA"
	const key = "a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2U"
	digests := []string{
		"",
		"plaintext",
		"$2a$10$short",
		"$argon2id$v=19$bad",
		"$argon2id$v=19$m=1,t=1,p=1$!!$!!",
		"$argon2id$v=19$m=65536,t=0,p=4$" + salt + "$" + key,
		"$argon2id$v=19$m=65536,t=1,p=0$" + salt + "$" + key,
		"$argon2id$v=19$m=16,t=1,p=4$" + salt + "$" + key,
		"$argon2id$v=19$m=4294967295,t=1,p=4$" + salt + "$" + key,
		"$argon2id$v=19$m=65536,t=1,p=4$$" + key,
	}
	for _, digest := range digests {
		ok, err := h.Verify("p1", digest)
		if ok {
			t.Fatalf("digest %q must not verify", digest)
		}
		if !errors.Is(err, ErrMalformedDigest) {
			t.Fatalf("digest %q: expected ErrMalformedDigest, got %v", digest, err)
		}
	}
}

func TestPasswordHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	bcryptDigest, err := NewBcryptHasher(bcrypt.MinCost).Hash("p1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := NewArgon2idHasher().Verify("p1", bcryptDigest)
	if err != nil || !ok {
		t.Fatalf("argon2id hasher should verify bcrypt digests, got %v,%v", ok, err)
	}
}

func TestNewPasswordHasher(t *testing.T) {
	if _, err := NewPasswordHasher("argon2id", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := NewPasswordHasher("bcrypt", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.(*BcryptHasher).cost != bcrypt.DefaultCost {
		t.Fatalf("expected out-of-range cost to fall back to default")
	}
	if _, err := NewPasswordHasher("md5", 0); err == nil {
		t.Fatalf("expected error for unknown hasher")
	}
}
