package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var testParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher() *PasswordHasher {
	return NewPasswordHasher(testParams, 64)
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher()

	for _, password := range []string{"Secret123!", "", "pässwörd", strings.Repeat("x", 64)} {
		digest, err := h.Hash(password)
		if err != nil {
			t.Fatalf("Hash(%q) returned error: %v", password, err)
		}
		if DetectScheme(digest) != SchemeArgon2id {
			t.Fatalf("digest %q not argon2id", digest)
		}
		ok, err := h.Verify(password, digest)
		if err != nil || !ok {
			t.Fatalf("Verify(%q) = %v, %v; want true, nil", password, ok, err)
		}
		ok, err = h.Verify(password+"x", digest)
		if ok {
			t.Fatalf("Verify accepted a different password for %q", password)
		}
		if err != nil && !errors.Is(err, ErrPasswordTooLong) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestHashSaltsEachDigest(t *testing.T) {
	h := newTestHasher()
	a, _ := h.Hash("Secret123!")
	b, _ := h.Hash("Secret123!")
	if a == b {
		t.Error("expected distinct digests for the same password")
	}
}

func TestHashRejectsOversizedPassword(t *testing.T) {
	h := newTestHasher()
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash error = %v, want ErrPasswordTooLong", err)
	}
	if _, err := h.Verify(strings.Repeat("a", 65), "$argon2id$"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify error = %v, want ErrPasswordTooLong", err)
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher()
	raw, err := bcrypt.GenerateFromPassword([]byte("Secret123!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	digest := string(raw)

	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		variant := prefix + digest[4:]
		if DetectScheme(variant) != SchemeBcrypt {
			t.Fatalf("DetectScheme(%q) != bcrypt", prefix)
		}
	}

	if ok, err := h.Verify("Secret123!", digest); err != nil || !ok {
		t.Fatalf("Verify bcrypt = %v, %v", ok, err)
	}
	if ok, _ := h.Verify("wrong", digest); ok {
		t.Fatal("bcrypt accepted wrong password")
	}
	if !h.NeedsRehash(digest) {
		t.Error("bcrypt digest should need rehash")
	}
}

func TestVerifyLegacyPBKDF2(t *testing.T) {
	h := newTestHasher()
	salt := []byte("0123456789abcdef")
	key := pbkdf2.Key([]byte("Secret123!"), salt, 1000, 32, sha256.New)
	adapted := func(b []byte) string {
		return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
	}
	digest := fmt.Sprintf("$pbkdf2-sha256$%d$%s$%s", 1000, adapted(salt), adapted(key))

	if DetectScheme(digest) != SchemePBKDF2SHA256 {
		t.Fatalf("DetectScheme = %v", DetectScheme(digest))
	}
	if ok, err := h.Verify("Secret123!", digest); err != nil || !ok {
		t.Fatalf("Verify pbkdf2 = %v, %v", ok, err)
	}
	if ok, _ := h.Verify("Secret123?", digest); ok {
		t.Fatal("pbkdf2 accepted wrong password")
	}
	if !h.NeedsRehash(digest) {
		t.Error("pbkdf2 digest should need rehash")
	}
}

func TestVerifyRejectsUnknownAndMalformed(t *testing.T) {
	h := newTestHasher()
	tests := []struct {
		name   string
		digest string
		want   error
	}{
		{"plaintext", "Secret123!", ErrUnknownScheme},
		{"md5 crypt", "$1$abc$def", ErrUnknownScheme},
		{"argon2 truncated", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA", ErrMalformedHash},
		{"argon2 empty key", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$", ErrMalformedHash},
		{"pbkdf2 bad rounds", "$pbkdf2-sha256$x$c2FsdA$aGFzaA", ErrMalformedHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("Secret123!", tt.digest)
			if ok {
				t.Fatal("expected verification failure")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
