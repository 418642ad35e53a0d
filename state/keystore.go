package state

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"go.step.sm/crypto/x25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrKeyStoreSignature = errors.New("key store signature mismatch")
	ErrKeyStoreTruncated = errors.New("key store truncated")
)

const keyStoreInfo = "wisun key store v1"

// StoreKey signs the persisted key information of a border router.
type StoreKey [32]byte
type StorePublicKey [32]byte

func GenerateStoreKey() (StoreKey, error) {
	_, priv, err := x25519.GenerateKey(rand.Reader)
	if err != nil {
		return StoreKey{}, err
	}
	return StoreKey(priv), nil
}

func (k StoreKey) IsZero() bool {
	return k == StoreKey{}
}

func (k StoreKey) Pubkey() StorePublicKey {
	val, err := x25519.PrivateKey(k[:]).PublicKey()
	if err != nil {
		panic(err)
	}
	return StorePublicKey(val)
}

func (k StoreKey) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(k[:])), nil
}

func (k *StoreKey) UnmarshalText(text []byte) error {
	return decodeKey(k[:], text)
}

func (k StorePublicKey) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(k[:])), nil
}

func (k *StorePublicKey) UnmarshalText(text []byte) error {
	return decodeKey(k[:], text)
}

func (k StorePublicKey) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

func decodeKey(dst []byte, text []byte) error {
	b, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("invalid key length %d", len(b))
	}
	copy(dst, b)
	return nil
}

// KeyInfo is the key material a border router keeps across restarts.
type KeyInfo struct {
	NetworkName string `yaml:"network_name"`
	PanId       uint16 `yaml:"pan_id"`
	PanVersion  uint16 `yaml:"pan_version"`
	Gtks        GtkSet `yaml:"gtks"`
	Restarts    uint32 `yaml:"restarts"`
	Timestamp   int64  `yaml:"timestamp"`
}

// Restored returns the key information to run with after a restart. The PAN
// version moves well ahead of anything the previous run could have advertised.
func (k *KeyInfo) Restored() KeyInfo {
	n := *k
	n.PanVersion += PanVersionRestartIncrement
	n.Restarts++
	return n
}

func sealKey(pub StorePublicKey, salt []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	_, err := io.ReadFull(hkdf.New(sha256.New, pub[:], salt, []byte(keyStoreInfo)), key)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func signBlob(data []byte, key StoreKey) ([]byte, error) {
	sig, err := x25519.PrivateKey(key[:]).Sign(rand.Reader, data, crypto.Hash(0))
	if err != nil {
		return nil, err
	}
	return append(sig, data...), nil
}

func verifyBlob(data []byte, key StorePublicKey) ([]byte, error) {
	if len(data) < x25519.SignatureSize {
		return nil, ErrKeyStoreTruncated
	}
	signature := data[:x25519.SignatureSize]
	plainText := data[x25519.SignatureSize:]
	if !x25519.Verify(key[:], plainText, signature) {
		return nil, ErrKeyStoreSignature
	}
	return plainText, nil
}

func sealBlob(data []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	_, err = rand.Read(nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func openBlob(data []byte, key []byte) ([]byte, error) {
	if len(data) < chacha20poly1305.NonceSizeX {
		return nil, ErrKeyStoreTruncated
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:], nil)
}

// SealKeyInfo signs the key information with the store key, then encrypts it
// with a key derived from the public half and salt (normally the border router EUI-64).
func SealKeyInfo(info *KeyInfo, key StoreKey, salt []byte) ([]byte, error) {
	info.Timestamp = time.Now().UnixNano()
	plainText, err := yaml.Marshal(info)
	if err != nil {
		return nil, err
	}
	blob, err := signBlob(plainText, key)
	if err != nil {
		return nil, err
	}
	sk, err := sealKey(key.Pubkey(), salt)
	if err != nil {
		return nil, err
	}
	return sealBlob(blob, sk)
}

func OpenKeyInfo(data []byte, pub StorePublicKey, salt []byte) (*KeyInfo, error) {
	sk, err := sealKey(pub, salt)
	if err != nil {
		return nil, err
	}
	blob, err := openBlob(data, sk)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	blob, err = verifyBlob(blob, pub)
	if err != nil {
		return nil, err
	}
	info := &KeyInfo{}
	err = yaml.Unmarshal(blob, info)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func StoreKeyInfo(path string, info *KeyInfo, key StoreKey, salt []byte) error {
	sealed, err := SealKeyInfo(info, key, salt)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, []byte(base64.StdEncoding.EncodeToString(sealed)), 0600)
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadKeyInfo reads a sealed key store. A missing file is reported with os.ErrNotExist.
func LoadKeyInfo(path string, pub StorePublicKey, salt []byte) (*KeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	return OpenKeyInfo(sealed, pub, salt)
}
