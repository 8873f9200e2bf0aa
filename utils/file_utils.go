package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
)

// Size of keys generated for new wallets and nodes.
const DefaultKeyBits = 2048

// ParseKeyFile reads the private key at fPath, or generates and saves a new
// one there when createNewKey is set.
func ParseKeyFile(fPath string, createNewKey bool) (*rsa.PrivateKey, error) {
	if fPath == "" {
		return nil, errors.New("file path is missing")
	}
	if createNewKey {
		userKey, _ := GenerateKeyPair(DefaultKeyBits)
		if userKey == nil {
			return nil, errors.New("failed to generate key")
		}
		if err := SavePrivateKeyToFile(userKey, fPath); err != nil {
			return nil, err
		}
		return userKey, nil
	}
	return ReadKeyFromFPath(fPath)
}

func SavePrivateKeyToFile(privkey *rsa.PrivateKey, fpath string) error {
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open key file %s: %w", fpath, err)
	}
	defer f.Close()
	if _, err := f.Write(PrivateKeyToBytes(privkey)); err != nil {
		return fmt.Errorf("save key in %s: %w", fpath, err)
	}
	return nil
}

func ReadKeyFromFPath(fPath string) (*rsa.PrivateKey, error) {
	fileContent, err := ioutil.ReadFile(fPath)
	if err != nil {
		return nil, err
	}
	if len(fileContent) == 0 {
		return nil, fmt.Errorf("key file %s is empty", fPath)
	}
	key := BytesToPrivateKey(fileContent)
	if key == nil {
		return nil, fmt.Errorf("key file %s holds no RSA private key", fPath)
	}
	return key, nil
}
