package utils

import (
	"encoding/hex"
	"strconv"
)

func BytesToHex(bytes []byte) string {
	return hex.EncodeToString(bytes)
}

func HexToBytes(str string) ([]byte, error) {
	bytes, err := hex.DecodeString(str)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// Decimal representation of a proof guess, as fed to the puzzle digest.
func Int64ToBytes(i int64) []byte {
	return strconv.AppendInt(nil, i, 10)
}
