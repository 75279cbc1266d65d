package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrPasswordTooLong = errors.New("password too long")
	ErrUnknownScheme   = errors.New("unknown password hash scheme")
	ErrMalformedHash   = errors.New("malformed password hash")
)

const DefaultMaxPasswordBytes = 4096

// Scheme identifies the algorithm that produced a stored digest.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeArgon2id
	SchemeBcrypt
	SchemePBKDF2SHA256
)

func (s Scheme) String() string {
	switch s {
	case SchemeArgon2id:
		return "argon2id"
	case SchemeBcrypt:
		return "bcrypt"
	case SchemePBKDF2SHA256:
		return "pbkdf2-sha256"
	default:
		return "unknown"
	}
}

// DetectScheme inspects the digest prefix.
func DetectScheme(digest string) Scheme {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(digest, "$2a$"),
		strings.HasPrefix(digest, "$2b$"),
		strings.HasPrefix(digest, "$2y$"):
		return SchemeBcrypt
	case strings.HasPrefix(digest, "$pbkdf2-sha256$"):
		return SchemePBKDF2SHA256
	default:
		return SchemeUnknown
	}
}

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHasher hashes with argon2id and verifies argon2id, bcrypt and
// pbkdf2-sha256 digests.
type PasswordHasher struct {
	params   Argon2Params
	maxBytes int
}

func NewPasswordHasher(params Argon2Params, maxBytes int) *PasswordHasher {
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
		params = DefaultArgon2Params
	}
	if params.KeyLen == 0 {
		params.KeyLen = DefaultArgon2Params.KeyLen
	}
	if params.SaltLen == 0 {
		params.SaltLen = DefaultArgon2Params.SaltLen
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPasswordBytes
	}
	return &PasswordHasher{params: params, maxBytes: maxBytes}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) > h.maxBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest. A false result with a nil
// error is a plain mismatch.
func (h *PasswordHasher) Verify(password string, digest string) (bool, error) {
	if len(password) > h.maxBytes {
		return false, ErrPasswordTooLong
	}

	switch DetectScheme(digest) {
	case SchemeArgon2id:
		return verifyArgon2id(password, digest)
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	case SchemePBKDF2SHA256:
		return verifyPBKDF2SHA256(password, digest)
	default:
		return false, ErrUnknownScheme
	}
}

// NeedsRehash is true for any digest not produced by the canonical scheme.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	return DetectScheme(digest) != SchemeArgon2id
}

func verifyArgon2id(password, digest string) (bool, error) {
	// $argon2id$v=19$m=65536,t=3,p=2$salt$hash
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var (
		memory  uint32
		time    uint32
		threads uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: decode salt: %v", ErrMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: decode hash: %v", ErrMalformedHash, err)
	}

	if len(salt) == 0 || len(key) == 0 || time == 0 || threads == 0 {
		return false, ErrMalformedHash
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

// pbkdf2-sha256 digests use the modular crypt layout
// $pbkdf2-sha256$<rounds>$<salt>$<checksum> with "." in place of "+" and no
// padding.
func verifyPBKDF2SHA256(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 {
		return false, ErrMalformedHash
	}

	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return false, ErrMalformedHash
	}
	salt, err := decodeAdaptedBase64(parts[3])
	if err != nil {
		return false, fmt.Errorf("%w: decode salt: %v", ErrMalformedHash, err)
	}
	key, err := decodeAdaptedBase64(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: decode hash: %v", ErrMalformedHash, err)
	}

	if len(key) == 0 {
		return false, ErrMalformedHash
	}

	computed := pbkdf2.Key([]byte(password), salt, rounds, len(key), sha256.New)
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

func decodeAdaptedBase64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
