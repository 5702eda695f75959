// Package digest 计算对象内容的摘要。
// 迁移时给对象命名和之后按 manifest 校验必须用同一个 Algorithm，
// 否则两边的 Hash 对不上。
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"assetvault/pkg/types"

	"github.com/zeebo/blake3"
)

// Algorithm 标识摘要算法
type Algorithm string

const (
	SHA1   Algorithm = "sha1"   // 默认：与资源 manifest 中的 hash 一致
	SHA256 Algorithm = "sha256" //
	BLAKE3 Algorithm = "blake3" // 256-bit 输出
)

// Default 是迁移和校验共用的默认算法
const Default = SHA1

// ParseAlgorithm 解析配置里的算法名 (大小写不敏感，空串返回 Default)
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return Default, nil
	case SHA1, SHA256, BLAKE3:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported digest algorithm %q", name)
	}
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// HexLen 返回该算法 hex 编码后的固定长度
func (a Algorithm) HexLen() int {
	return a.newHash().Size() * 2
}

// Sum 计算一段字节的摘要 (小写 hex)
func (a Algorithm) Sum(data []byte) types.Hash {
	h := a.newHash()
	h.Write(data)
	return types.Hash(hex.EncodeToString(h.Sum(nil)))
}

// SumReader 流式计算摘要，不把整个文件读进内存
// 唯一的错误来源是 reader 本身
func (a Algorithm) SumReader(r io.Reader) (types.Hash, int64, error) {
	h := a.newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to read content: %w", err)
	}
	return types.Hash(hex.EncodeToString(h.Sum(nil))), n, nil
}

// Matches 判断 hash 是否是该算法能产生的形状
func (a Algorithm) Matches(h types.Hash) bool {
	return len(h) == a.HexLen() && h.IsValid()
}

// Sum 使用 Default 算法
func Sum(data []byte) types.Hash {
	return Default.Sum(data)
}
