// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Algorithm names a supported password hashing scheme.
type Algorithm string

// Supported algorithms.
const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// BcryptCost is the fixed bcrypt work factor.
const BcryptCost = 12

// bcryptMaxInput is the longest input bcrypt accepts. Longer passwords are
// reduced with bcryptInput first.
const bcryptMaxInput = 72

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

const argon2Prefix = "$argon2id$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. A malformed or
	// unsupported hash never matches.
	Verify(password, hash string) bool

	// NeedsUpgrade reports whether hash was produced with a different
	// algorithm or a weaker work factor than the hasher currently uses.
	NeedsUpgrade(hash string) bool
}

// Hasher hashes with one configured algorithm and verifies any supported one,
// so stored hashes can be upgraded on the next successful login.
type Hasher struct {
	algorithm Algorithm
	cost      int
}

// NewHasher creates a Hasher for the given algorithm.
func NewHasher(algorithm Algorithm) (*Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
		return &Hasher{algorithm: algorithm, cost: BcryptCost}, nil
	default:
		return nil, oops.Code("AUTH_UNSUPPORTED_ALGORITHM").
			With("algorithm", string(algorithm)).
			Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// NewBcryptHasher creates a Hasher using bcrypt at BcryptCost.
func NewBcryptHasher() *Hasher {
	return &Hasher{algorithm: AlgorithmBcrypt, cost: BcryptCost}
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash produces a hash of the password with the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2id(password)
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", string(h.algorithm)).Wrap(err)
	}
	return string(hash), nil
}

// Verify checks the password against a bcrypt or argon2id hash.
func (h *Hasher) Verify(password, hash string) bool {
	if strings.HasPrefix(hash, argon2Prefix) {
		return verifyArgon2id(password, hash)
	}
	// bcrypt rejects anything that is not a well-formed $2a$/$2b$/$2y$ hash.
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

// bcryptInput returns password unchanged when bcrypt can take it and the
// base64 SHA-256 digest (44 bytes) when it is longer than bcryptMaxInput.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// NeedsUpgrade returns true when hash is not in the configured format or,
// for bcrypt, was produced with a lower cost.
func (h *Hasher) NeedsUpgrade(hash string) bool {
	isArgon := strings.HasPrefix(hash, argon2Prefix)
	if h.algorithm == AlgorithmArgon2id {
		return !isArgon
	}
	if isArgon {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	// Reject parameters that would truncate or make IDKey allocate absurdly.
	if threads == 0 || threads > 255 || time == 0 || memory == 0 || memory > 4*1024*1024 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > 1024 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// GatedHasher bounds how many hash computations run at once so CPU-heavy
// hashing cannot starve goroutines serving unrelated requests.
type GatedHasher struct {
	inner PasswordHasher
	gate  *semaphore.Weighted
}

// NewGatedHasher wraps inner with a limit of n concurrent computations.
// n <= 0 uses GOMAXPROCS.
func NewGatedHasher(inner PasswordHasher, n int) *GatedHasher {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &GatedHasher{inner: inner, gate: semaphore.NewWeighted(int64(n))}
}

// HashContext hashes once a slot is free or fails when ctx is done.
func (g *GatedHasher) HashContext(ctx context.Context, password string) (string, error) {
	if err := g.gate.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASH_CANCELLED").Wrap(err)
	}
	defer g.gate.Release(1)
	return g.inner.Hash(password)
}

// VerifyContext verifies once a slot is free. A cancelled ctx never matches.
func (g *GatedHasher) VerifyContext(ctx context.Context, password, hash string) bool {
	if err := g.gate.Acquire(ctx, 1); err != nil {
		return false
	}
	defer g.gate.Release(1)
	return g.inner.Verify(password, hash)
}

// Hash implements PasswordHasher.
func (g *GatedHasher) Hash(password string) (string, error) {
	return g.HashContext(context.Background(), password)
}

// Verify implements PasswordHasher.
func (g *GatedHasher) Verify(password, hash string) bool {
	return g.VerifyContext(context.Background(), password, hash)
}

// NeedsUpgrade is a cheap string check and is not gated.
func (g *GatedHasher) NeedsUpgrade(hash string) bool {
	return g.inner.NeedsUpgrade(hash)
}

var (
	_ PasswordHasher = (*Hasher)(nil)
	_ PasswordHasher = (*GatedHasher)(nil)
)
