package service

import (
	"strconv"
	"testing"
)

func TestGenerateOTP_RangeAndDigest(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, digest, err := generateOTP()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !isValidOTPCode(code) {
			t.Fatalf("expected 6 digit code, got %q", code)
		}
		n, _ := strconv.Atoi(code)
		if n < 100000 || n > 999999 {
			t.Fatalf("code out of range: %d", n)
		}
		if digest == code || !verifyOTP(code, digest) {
			t.Fatalf("digest should verify its own code")
		}
	}
}

func TestVerifyOTP_Rejects(t *testing.T) {
	code, digest, err := generateOTP()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	if verifyOTP(wrong, digest) {
		t.Fatalf("wrong code must not verify")
	}
	if verifyOTP(code, "") || verifyOTP(code, "a:b:c") {
		t.Fatalf("malformed stored value must not verify")
	}
}

func TestIsValidOTPCode(t *testing.T) {
	cases := map[string]bool{
		"123456":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
	}
	for code, want := range cases {
		if got := isValidOTPCode(code); got != want {
			t.Fatalf("isValidOTPCode(%q)=%v, want %v", code, got, want)
		}
	}
}
