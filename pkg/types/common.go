// pkg/types/common.go
package types

import "strings"

// Hash 代表对象的唯一标识符 (小写 Hex 摘要)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid 只做形状检查：非空、偶数长度、全部是小写 hex
// 具体长度由 digest.Algorithm 决定
func (h Hash) IsValid() bool {
	if len(h) < 2 || len(h)%2 != 0 {
		return false
	}
	for _, c := range h {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// Bucket 返回分桶目录名 (前 2 个字符)
// Example: "aabbcc..." -> "aa"
func (h Hash) Bucket() string {
	if len(h) < 2 {
		return string(h)
	}
	return string(h[:2])
}

// Normalize 把外部输入 (manifest、命令行) 统一成小写
func Normalize(s string) Hash {
	return Hash(strings.ToLower(strings.TrimSpace(s)))
}
