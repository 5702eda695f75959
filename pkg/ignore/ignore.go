package ignore

import (
	"fmt"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// Matcher 封装了丢弃逻辑
// 它负责判断一个旧缓存文件是不是垃圾文件 (如 .DS_Store)，
// 命中的文件在迁移时直接删除，不进入对象仓库
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 用 gitignore 语法编译规则
// 没有规则时返回 nil，nil Matcher 不匹配任何路径
func NewMatcher(patterns ...string) *Matcher {
	var lines []string
	for _, p := range patterns {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// LoadMatcher 读取规则文件 (每行一条) 并与额外规则合并
// path 为空时等价于 NewMatcher(extra...)
func LoadMatcher(fs afero.Fs, path string, extra ...string) (*Matcher, error) {
	if path == "" {
		return NewMatcher(extra...), nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read discard rules %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	return NewMatcher(append(lines, extra...)...), nil
}

// Matches 检查给定的路径是否匹配丢弃规则
// path: 相对于旧缓存根目录的路径 (例如 "icons/.DS_Store")
// 返回: true 表示应该丢弃
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
