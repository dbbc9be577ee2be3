package newebpay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

// Envelope is a signed TradeInfo payload as exchanged with the gateway
type Envelope struct {
	TradeInfo string // Lowercase hex ciphertext
	TradeSha  string // Uppercase hex SHA-256 signature
}

// Encrypt canonicalizes info and encrypts it with AES-CBC/PKCS#7 using the raw
// key and IV bytes. The result is lowercase hex.
func Encrypt(info *TradeInfo, key, iv string) (string, error) {
	block, err := newCipher(key, iv)
	if err != nil {
		return "", err
	}

	plaintext := pkcs7Pad([]byte(info.Encode()), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(ciphertext, plaintext)

	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Values are returned exactly as found in the
// plaintext, without percent-decoding, which matches what the gateway sends.
func Decrypt(hexCiphertext, key, iv string) (*TradeInfo, error) {
	block, err := newCipher(key, iv)
	if err != nil {
		return nil, err
	}

	ciphertext, err := hex.DecodeString(hexCiphertext)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeCrypto, "trade info is not valid hex", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeCrypto, "trade info is not block aligned").
			WithDetail("length", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(unpadded) {
		return nil, domain.NewDomainError(domain.ErrorCodeCrypto, "trade info is not valid UTF-8")
	}

	return parseTradeInfo(string(unpadded)), nil
}

// Sign computes SHA256("HashKey=<key>&<hexCiphertext>&HashIV=<iv>") as uppercase hex
func Sign(hexCiphertext, key, iv string) string {
	sum := sha256.Sum256([]byte("HashKey=" + key + "&" + hexCiphertext + "&HashIV=" + iv))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify recomputes the signature and compares it case-insensitively in constant time
func Verify(hexCiphertext, signature, key, iv string) bool {
	expected := Sign(hexCiphertext, key, iv)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(signature))) == 1
}

// Seal encrypts and signs info with the credential
func Seal(info *TradeInfo, cred *domain.ProviderCredential) (*Envelope, error) {
	tradeInfo, err := Encrypt(info, cred.HashKey, cred.HashIV)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		TradeInfo: tradeInfo,
		TradeSha:  Sign(tradeInfo, cred.HashKey, cred.HashIV),
	}, nil
}

// Open verifies and decrypts an envelope. A bad signature is reported before
// any decryption is attempted.
func Open(env *Envelope, cred *domain.ProviderCredential) (*TradeInfo, error) {
	if !Verify(env.TradeInfo, env.TradeSha, cred.HashKey, cred.HashIV) {
		return nil, domain.ErrSignatureInvalid
	}
	return Decrypt(env.TradeInfo, cred.HashKey, cred.HashIV)
}

func newCipher(key, iv string) (cipher.Block, error) {
	if len(iv) != aes.BlockSize {
		return nil, domain.NewDomainError(domain.ErrorCodeCrypto, fmt.Sprintf("hash IV must be %d bytes", aes.BlockSize)).
			WithDetail("length", len(iv))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeCrypto, "hash key must be 16, 24 or 32 bytes", err).
			WithDetail("length", len(key))
	}
	return block, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeCrypto, "invalid padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, domain.NewDomainError(domain.ErrorCodeCrypto, "invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, domain.NewDomainError(domain.ErrorCodeCrypto, "invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
