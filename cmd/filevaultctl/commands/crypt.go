package commands

import (
	"context"
	"fmt"
	"os"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/header"
	"github.com/allisson/filevault/internal/crypto/keyslot"
	"github.com/allisson/filevault/internal/crypto/service"
	"github.com/allisson/filevault/internal/crypto/stream"
)

// RunEncrypt encrypts inPath into outPath under a freshly generated master
// key, itself wrapped in a single keyslot under the mounted key id. The
// mounted key must already be recovered via RunMount.
func RunEncrypt(ctx context.Context, statePath, id, inPath, outPath, algorithmStr, hashingAlgorithmStr, hashingTierStr string) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}
	hashingAlgorithm, err := parseHashingAlgorithm(hashingAlgorithmStr)
	if err != nil {
		return err
	}
	hashingTier, err := parseHashingTier(hashingTierStr)
	if err != nil {
		return err
	}

	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	userKey, err := vault.Manager.GetKey(keyID)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	masterKey, err := cryptoDomain.GenerateMasterKey()
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}
	defer masterKey.Close()

	ks, err := keyslot.New(algorithm, hashingAlgorithm, hashingTier, userKey, masterKey)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	fileHeader, err := header.New(algorithm, []*keyslot.Keyslot{ks})
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open input file %s: %w", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}
	defer out.Close()

	if err := fileHeader.Write(out); err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	aad, err := fileHeader.GenerateAAD()
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	encryptor, err := stream.NewEncryptor(service.NewAEADManager(), masterKey.Expose(), fileHeader.Nonce, algorithm)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	if err := stream.EncryptStreams(encryptor, in, out, aad); err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}
	return nil
}

// RunDecrypt recovers the plaintext of a file written by RunEncrypt using
// the mounted key that unlocks one of its keyslots.
func RunDecrypt(ctx context.Context, statePath, id, inPath, outPath string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	userKey, err := vault.Manager.GetKey(keyID)
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open input file %s: %w", inPath, err)
	}
	defer in.Close()

	fileHeader, _, err := header.Deserialize(in)
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}

	masterKey, err := fileHeader.DecryptMasterKey(userKey)
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}
	defer masterKey.Close()

	aad, err := fileHeader.GenerateAAD()
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}
	defer out.Close()

	decryptor, err := stream.NewDecryptor(service.NewAEADManager(), masterKey.Expose(), fileHeader.Nonce, fileHeader.Algorithm)
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}

	if err := stream.DecryptStreams(decryptor, in, out, aad); err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}
	return nil
}
