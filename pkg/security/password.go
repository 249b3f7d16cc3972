// Package security hashes account passwords with Argon2id and stores them in
// the PHC string format: $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/homechef-backend/pkg/config"
)

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var b64 = base64.RawStdEncoding

type argonParams struct {
	memory  uint32
	passes  uint32
	lanes   uint8
	saltLen int
	keyLen  uint32
}

// paramsFor bounds configured costs to values argon2 accepts and a login
// request can afford.
func paramsFor(cfg config.PasswordConfig) argonParams {
	return argonParams{
		memory:  uint32(min(max(cfg.ArgonMemoryKB, 8), 512*1024)),
		passes:  uint32(min(max(cfg.ArgonTime, 1), 10)),
		lanes:   uint8(min(max(cfg.ArgonParallelism, 1), 255)),
		saltLen: min(max(cfg.ArgonSaltLen, 8), 64),
		keyLen:  uint32(min(max(cfg.ArgonKeyLen, 16), 64)),
	}
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.passes, p.memory, p.lanes, p.keyLen)
}

// sameCost ignores salt length, which never affects verification.
func (p argonParams) sameCost(o argonParams) bool {
	return p.memory == o.memory && p.passes == o.passes && p.lanes == o.lanes && p.keyLen == o.keyLen
}

func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	p := paramsFor(cfg)
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := p.derive(password, salt)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.passes, p.lanes, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash
// is an error, a mismatch is not.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, p.derive(password, salt)) == 1, nil
}

// NeedsRehash reports whether encoded was produced with costs other than the
// configured ones, or cannot be parsed at all.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	p, _, _, err := parsePHC(encoded)
	return err != nil || !p.sameCost(paramsFor(cfg))
}

func parsePHC(encoded string) (argonParams, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	var p argonParams
	var lanes uint32
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &lanes)
	if err != nil || n != 3 || p.memory == 0 || p.passes == 0 || lanes == 0 || lanes > 255 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	p.lanes = uint8(lanes)

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	p.saltLen = len(salt)
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}
