package common

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// recipeNamespace 食譜 ID 命名空間
var recipeNamespace = uuid.MustParse("6f1c2a6e-8d0b-4d53-9a7e-1f3b5c2e9a41")

// ContentID 依內容產生穩定的 UUID (v5)
func ContentID(content string) string {
	return uuid.NewSHA1(recipeNamespace, []byte(content)).String()
}

// HashStrings 計算多個字串的 SHA-256 雜湊
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
