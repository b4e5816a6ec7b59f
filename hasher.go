package bttconf

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// CalculateHash16 返回 SHA256 Hex 字符串的前 16 位。
func CalculateHash16(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// ComputeHash 计算配置集的内容 Hash。
// 按 Key 排序后依次写入 key、value，用 0 字节分隔，保证确定性。
// 空配置集返回空字符串。
func ComputeHash(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(values[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
