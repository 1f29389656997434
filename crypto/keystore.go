package crypto

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SaveToKeystore encrypts the private key with the passphrase and writes a
// standard v3 keystore file at path. The key is first imported into a scratch
// keystore so the ciphertext is produced by the audited scrypt parameters.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	tmpDir, err := os.MkdirTemp("", "evregistry-keystore")
	if err != nil {
		return fmt.Errorf("create scratch keystore dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ks := keystore.NewKeyStore(tmpDir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.ImportECDSA(key.PrivateKey, passphrase)
	if err != nil {
		return fmt.Errorf("import key: %w", err)
	}

	encrypted, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return fmt.Errorf("read keystore output: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keystore dir: %w", err)
		}
	}
	if err := os.WriteFile(path, encrypted, 0o600); err != nil {
		return fmt.Errorf("write keystore file: %w", err)
	}
	return nil
}

// LoadFromKeystore decrypts the keystore file at path with the passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(encrypted, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	defer zeroKey(key.PrivateKey.D.Bits())
	return PrivateKeyFromBytes(ethcrypto.FromECDSA(key.PrivateKey))
}

func zeroKey(bits []big.Word) {
	for i := range bits {
		bits[i] = 0
	}
}
