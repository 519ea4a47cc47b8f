package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fridayweigh/weights/src/oops"
	"golang.org/x/crypto/argon2"
)

type HashAlgorithm string

const (
	// Unsalted hex SHA-256, as written by the first version of the tracker.
	// Only ever verified, never produced.
	LegacySHA256 HashAlgorithm = "sha256"
	Argon2id     HashAlgorithm = "argon2id"
)

const saltLength = 16
const keyLength = 64

type HashedPassword struct {
	Algorithm  HashAlgorithm
	AlgoConfig string // arbitrary info describing the hash parameters (e.g. work factor)

	// Both stored in the form they take in the database (base64 or hex).
	Salt string
	Hash string
}

// ParsePasswordString reads a stored password. Besides the algo$config$salt$hash
// form it accepts the bare 64-character hex digests of the legacy scheme.
func ParsePasswordString(s string) (HashedPassword, error) {
	if isLegacyDigest(s) {
		return HashedPassword{Algorithm: LegacySHA256, Hash: strings.ToLower(s)}, nil
	}

	pieces := strings.SplitN(s, "$", 4)
	if len(pieces) < 4 {
		return HashedPassword{}, oops.New(nil, "unrecognized password string format")
	}

	return HashedPassword{
		Algorithm:  HashAlgorithm(pieces[0]),
		AlgoConfig: pieces[1],
		Salt:       pieces[2],
		Hash:       pieces[3],
	}, nil
}

func isLegacyDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func (p HashedPassword) String() string {
	return fmt.Sprintf("%s$%s$%s$%s", p.Algorithm, p.AlgoConfig, p.Salt, p.Hash)
}

func (p HashedPassword) IsOutdated() bool {
	return p.Algorithm != Argon2id
}

type Argon2idConfig struct {
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
}

func ParseArgon2idConfig(cfg string) (Argon2idConfig, error) {
	parts := strings.Split(cfg, ",")
	if len(parts) != 4 {
		return Argon2idConfig{}, oops.New(nil, "expected 4 Argon2id parameters, got %d", len(parts))
	}

	values := make([]uint64, 4)
	for i, prefix := range []string{"t=", "m=", "p=", "l="} {
		if !strings.HasPrefix(parts[i], prefix) {
			return Argon2idConfig{}, oops.New(nil, "malformed Argon2id parameter %q", parts[i])
		}
		bits := 32
		if prefix == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(parts[i][len(prefix):], 10, bits)
		if err != nil {
			return Argon2idConfig{}, oops.New(err, "failed to parse Argon2id parameter %q", parts[i])
		}
		values[i] = v
	}

	return Argon2idConfig{
		Time:      uint32(values[0]),
		Memory:    uint32(values[1]),
		Threads:   uint8(values[2]),
		KeyLength: uint32(values[3]),
	}, nil
}

func (c Argon2idConfig) String() string {
	return fmt.Sprintf("t=%v,m=%v,p=%v,l=%v", c.Time, c.Memory, c.Threads, c.KeyLength)
}

func CheckPassword(password string, hashedPassword HashedPassword) (bool, error) {
	switch hashedPassword.Algorithm {
	case Argon2id:
		cfg, err := ParseArgon2idConfig(hashedPassword.AlgoConfig)
		if err != nil {
			return false, err
		}

		salt, err := base64.StdEncoding.DecodeString(hashedPassword.Salt)
		if err != nil {
			return false, oops.New(err, "failed to decode salt")
		}

		newHash := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Threads, cfg.KeyLength)
		newHashEnc := base64.StdEncoding.EncodeToString(newHash)

		return subtle.ConstantTimeCompare([]byte(newHashEnc), []byte(hashedPassword.Hash)) == 1, nil
	case LegacySHA256:
		sum := sha256.Sum256([]byte(password))
		newHashEnc := hex.EncodeToString(sum[:])

		return subtle.ConstantTimeCompare([]byte(newHashEnc), []byte(strings.ToLower(hashedPassword.Hash))) == 1, nil
	default:
		return false, oops.New(nil, "unrecognized password hash algorithm: %s", hashedPassword.Algorithm)
	}
}

func HashPassword(password string) HashedPassword {
	// Follows the OWASP recommendations as of March 2021.
	// https://cheatsheetseries.owasp.org/cheatsheets/Password_Storage_Cheat_Sheet.html

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		panic(oops.New(err, "failed to generate password salt"))
	}
	saltEnc := base64.StdEncoding.EncodeToString(salt)

	cfg := Argon2idConfig{
		Time:      1,
		Memory:    40 * 1024, // this is in KiB for some reason
		Threads:   1,
		KeyLength: keyLength,
	}

	key := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Threads, cfg.KeyLength)
	keyEnc := base64.StdEncoding.EncodeToString(key)

	return HashedPassword{
		Algorithm:  Argon2id,
		AlgoConfig: cfg.String(),
		Salt:       saltEnc,
		Hash:       keyEnc,
	}
}
