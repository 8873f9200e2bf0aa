package utils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// GenerateKeyPair generates a new key pair
func GenerateKeyPair(bits int) (*rsa.PrivateKey, *rsa.PublicKey) {
	privkey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil
	}
	return privkey, &privkey.PublicKey
}

// PrivateKeyToBytes private key to bytes
func PrivateKeyToBytes(priv *rsa.PrivateKey) []byte {
	privBytes := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(priv),
		},
	)

	return privBytes
}

// PublicKeyToBytes public key to bytes
func PublicKeyToBytes(pub *rsa.PublicKey) []byte {
	pubASN1, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil
	}

	return pubASN1
}

// BytesToPrivateKey bytes to private key
func BytesToPrivateKey(priv []byte) *rsa.PrivateKey {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil
	}
	enc := x509.IsEncryptedPEMBlock(block)
	b := block.Bytes
	var err error
	if enc {
		b, err = x509.DecryptPEMBlock(block, nil)
		if err != nil {
			return nil
		}
	}
	key, err := x509.ParsePKCS1PrivateKey(b)
	if err != nil {
		return nil
	}
	return key
}

// BytesToPublicKey bytes to public key
func BytesToPublicKey(pub []byte) *rsa.PublicKey {
	ifc, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return nil
	}
	key, ok := ifc.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	return key
}

// PublicKeyToHex is the identity string of a key holder.
func PublicKeyToHex(pub *rsa.PublicKey) string {
	return BytesToHex(PublicKeyToBytes(pub))
}

// HexToPublicKey parses an identity string, nil if it isn't a key.
func HexToPublicKey(s string) *rsa.PublicKey {
	b, err := HexToBytes(s)
	if err != nil || len(b) == 0 {
		return nil
	}
	return BytesToPublicKey(b)
}

// Hash message using SHA256
func SHA256(msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return digest[:]
}

var pssOptions = rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// Sign a message's SHA256 digest with provided private key.
func Sign(msg []byte, sk *rsa.PrivateKey) ([]byte, error) {
	if sk == nil {
		return nil, errors.New("private key is missing")
	}
	return rsa.SignPSS(rand.Reader, sk, crypto.SHA256, SHA256(msg), &pssOptions)
}

// Verify the given signature matches the message.
func Verify(msg []byte, pk *rsa.PublicKey, signature []byte) bool {
	if pk == nil {
		return false
	}
	return rsa.VerifyPSS(pk, crypto.SHA256, SHA256(msg), signature, &pssOptions) == nil
}
