package keymanager

import (
	"strings"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

// parseAlgorithm validates and converts a StoredKeyRow.Algorithm string back
// into the Algorithm type used by the AEAD layer.
func parseAlgorithm(s string) (cryptoDomain.Algorithm, error) {
	algorithm := cryptoDomain.Algorithm(s)
	if !algorithm.Valid() {
		return "", cryptoDomain.ErrUnsupportedAlgorithm
	}
	return algorithm, nil
}

// encodeHashingSpec packs a hashing algorithm and cost tier into the single
// string column StoredKeyRow.HashingAlgorithm offers.
func encodeHashingSpec(algorithm hashing.Algorithm, tier hashing.Tier) string {
	return string(algorithm) + ":" + string(tier)
}

// parseHashingSpec is the inverse of encodeHashingSpec.
func parseHashingSpec(s string) (hashing.Algorithm, hashing.Tier, error) {
	algorithm, tier, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", cryptoDomain.ErrUnsupportedAlgorithm
	}
	if _, err := hashing.ParamsFor(hashing.Algorithm(algorithm), hashing.Tier(tier)); err != nil {
		return "", "", err
	}
	return hashing.Algorithm(algorithm), hashing.Tier(tier), nil
}
