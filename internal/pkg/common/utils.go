package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString 計算字串的 SHA-256 十六進位雜湊
func HashString(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeName 轉小寫、去頭尾空白並把連續空白合併成一格
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
