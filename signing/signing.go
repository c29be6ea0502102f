// Package signing wraps the secp256k1 keys that identify payers, voters and
// vote accounts.
package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"vote-program/models"
)

var ErrInvalidSignature = errors.New("invalid signature")

// KeyFile is the on-disk form of a signer key.
type KeyFile struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// GenerateKey generates a new ECDSA key pair
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Address derives the account address of key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Sign signs a 32-byte digest.
func Sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}
	return sig, nil
}

// RecoverSigner returns the address whose key produced sig over digest.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "length %d", len(sig))
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignTransaction appends one signature per key over the transaction digest.
func SignTransaction(tx *models.Transaction, keys ...*ecdsa.PrivateKey) error {
	digest := tx.Digest()
	for _, key := range keys {
		sig, err := Sign(digest, key)
		if err != nil {
			return err
		}
		tx.Signatures = append(tx.Signatures, hexutil.Bytes(sig))
	}
	return nil
}

// ParsePrivateKey accepts a hex private key with or without the 0x prefix.
func ParsePrivateKey(keyStr string) (*ecdsa.PrivateKey, error) {
	keyStr = strings.TrimPrefix(strings.TrimSpace(keyStr), "0x")

	keyBytes, err := hex.DecodeString(keyStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key hex string")
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return privateKey, nil
}

func NewKeyFile(key *ecdsa.PrivateKey) KeyFile {
	return KeyFile{
		Address:    Address(key).Hex(),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
	}
}

// LoadKey reads a key file written by SaveKey.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse key file %s", path)
	}
	return ParsePrivateKey(kf.PrivateKey)
}

func SaveKey(path string, key *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create key directory")
	}
	data, err := json.MarshalIndent(NewKeyFile(key), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal key file")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to save key file")
	}
	return nil
}

// LoadOrGenerateKey returns the key stored at path, creating one if the file
// does not exist yet.
func LoadOrGenerateKey(path string) (*ecdsa.PrivateKey, bool, error) {
	key, err := LoadKey(path)
	if err == nil {
		return key, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}

	key, err = GenerateKey()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to generate key")
	}
	if err := SaveKey(path, key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
