// Package hashing derives the 32-byte key material used to unlock a
// keyslot from a user-supplied password and a per-slot salt. Two password
// hashing functions are supported, each with fixed, named parameter tiers
// so that the exact memory/time/parallelism triplet used to hash a
// password round-trips through the keyslot wire format.
package hashing

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"lukechampine.com/blake3"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
)

// Algorithm identifies the password hashing function used by a keyslot.
type Algorithm string

const (
	// Argon2id is the recommended password hashing function for new
	// keyslots: memory-hard and resistant to both GPU and side-channel
	// attacks.
	Argon2id Algorithm = "argon2id"

	// BalloonBlake3 is a Balloon-hashing construction built on the BLAKE3
	// hash function, offered as a software-only alternative on platforms
	// where Argon2id's memory requirements are impractical.
	BalloonBlake3 Algorithm = "balloon-blake3"
)

// Tier names the standard memory/time/parallelism triplets. The numeric
// parameters for a tier are fixed by ParamsFor and never change once
// released, since changing them would break decryption of existing
// keyslots hashed under that tier.
type Tier string

const (
	Standard Tier = "standard"
	Hardened Tier = "hardened"
	Paranoid Tier = "paranoid"
)

// Params holds the concrete cost parameters for a hashing invocation.
// MemoryKiB is only meaningful for Argon2id; BalloonBlake3 uses Parallelism
// as its number of lanes. The salt is not part of Params: Hash takes it
// from the caller so that it can be stored and replayed exactly.
type Params struct {
	Algorithm   Algorithm
	Tier        Tier
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// ParamsFor returns the fixed cost parameters for a named tier of an
// algorithm. Unknown (algorithm, tier) pairs return an error so that a
// corrupted keyslot can never silently fall back to a weaker tier.
func ParamsFor(algorithm Algorithm, tier Tier) (Params, error) {
	switch algorithm {
	case Argon2id:
		switch tier {
		case Standard:
			return Params{Algorithm: algorithm, Tier: tier, MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 4}, nil
		case Hardened:
			return Params{Algorithm: algorithm, Tier: tier, MemoryKiB: 256 * 1024, Iterations: 4, Parallelism: 4}, nil
		case Paranoid:
			return Params{Algorithm: algorithm, Tier: tier, MemoryKiB: 1024 * 1024, Iterations: 8, Parallelism: 8}, nil
		}
	case BalloonBlake3:
		switch tier {
		case Standard:
			return Params{Algorithm: algorithm, Tier: tier, Iterations: 16, Parallelism: 1}, nil
		case Hardened:
			return Params{Algorithm: algorithm, Tier: tier, Iterations: 20, Parallelism: 2}, nil
		case Paranoid:
			return Params{Algorithm: algorithm, Tier: tier, Iterations: 24, Parallelism: 4}, nil
		}
	}
	return Params{}, fmt.Errorf("%w: %s/%s", cryptoDomain.ErrUnsupportedAlgorithm, algorithm, tier)
}

// Hash derives a KeySize-byte key from password and salt using the cost
// parameters in p. The returned key is wrapped in a Secret and must be
// closed by the caller once it has been used to wrap or unwrap a keyslot.
func Hash(password, salt []byte, p Params) (*cryptoDomain.Secret, error) {
	switch p.Algorithm {
	case Argon2id:
		key := argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, cryptoDomain.KeySize)
		return cryptoDomain.NewSecret(key), nil
	case BalloonBlake3:
		key := balloonHash(password, salt, p.Iterations, int(p.Parallelism))
		return cryptoDomain.NewSecret(key), nil
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}

// spaceCost is the number of blocks held in memory during a single Balloon
// hashing round. It is intentionally modest: BalloonBlake3 exists for
// environments where Argon2id's larger memory footprint is impractical.
const spaceCost = 1024

// balloonHash implements the Balloon password hashing construction
// (Boneh, Corrigan-Gibbs & Schechter) using BLAKE3 as the underlying
// compression function. Each of parallelism independent lanes fills a
// space-cost buffer of hashes, mixes in pseudo-random blocks for
// timeCost rounds, and the lane outputs are combined with a final BLAKE3
// hash.
func balloonHash(password, salt []byte, timeCost uint32, parallelism int) []byte {
	if parallelism < 1 {
		parallelism = 1
	}

	laneOutputs := make([][]byte, parallelism)
	for lane := 0; lane < parallelism; lane++ {
		laneOutputs[lane] = balloonLane(password, salt, timeCost, lane, spaceCost)
	}

	final := blake3.New(cryptoDomain.KeySize, nil)
	for _, out := range laneOutputs {
		final.Write(out)
	}
	return final.Sum(nil)
}

func balloonLane(password, salt []byte, timeCost uint32, lane, spaceCost int) []byte {
	buf := make([][]byte, spaceCost)

	h := blake3.New(32, nil)
	h.Write(salt)
	h.Write(password)
	h.Write(laneCounter(uint64(lane)))
	buf[0] = h.Sum(nil)

	for m := 1; m < spaceCost; m++ {
		h := blake3.New(32, nil)
		h.Write(buf[m-1])
		buf[m] = h.Sum(nil)
	}

	for t := uint32(0); t < timeCost; t++ {
		for m := 0; m < spaceCost; m++ {
			h := blake3.New(32, nil)
			h.Write(buf[m])

			prev := (m - 1 + spaceCost) % spaceCost
			h.Write(buf[prev])

			neighbor := pseudoRandomIndex(salt, t, uint32(m), spaceCost)
			h.Write(buf[neighbor])

			buf[m] = h.Sum(nil)
		}
	}

	return buf[spaceCost-1]
}

func laneCounter(lane uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(lane >> (8 * i))
	}
	return b
}

func pseudoRandomIndex(salt []byte, t, m uint32, spaceCost int) int {
	h := blake3.New(8, nil)
	h.Write(salt)
	h.Write(laneCounter(uint64(t)))
	h.Write(laneCounter(uint64(m)))
	sum := h.Sum(nil)

	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return int(v % uint64(spaceCost))
}
