package ignore

import (
	"fmt"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 封装了排除逻辑
// 它负责判断一个相对路径是否被排除规则命中
type Matcher struct {
	ignorer  *gitignore.GitIgnore
	patterns []string
}

// NewMatcher 编译排除规则
// patterns: 命令行/配置给出的规则，语法同 .gitignore (glob, "!" 取反, 前导 "/" 锚定根目录)
// ignoreFile: 可选的规则文件，内容与 patterns 合并编译
func NewMatcher(patterns []string, ignoreFile string) (*Matcher, error) {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, p)
	}

	var ignorer *gitignore.GitIgnore
	var err error

	if ignoreFile != "" {
		// 规则文件必须存在，静默忽略会让用户以为排除生效了
		if _, errStat := os.Stat(ignoreFile); errStat != nil {
			return nil, fmt.Errorf("exclude file: %w", errStat)
		}
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFile, lines...)
		if err != nil {
			return nil, fmt.Errorf("failed to compile exclude file %s: %w", ignoreFile, err)
		}
	} else if len(lines) > 0 {
		ignorer = gitignore.CompileIgnoreLines(lines...)
	}

	return &Matcher{ignorer: ignorer, patterns: lines}, nil
}

// Matches 检查给定的相对路径是否应该被排除
// path: 相对于扫描根目录，分隔符为 '/' (例如 "data/model.bin")；根目录 "." 永远不会被排除
// isDir: 目录额外以 "path/" 的形式匹配，这样 "cache/" 这类只针对目录的规则才会生效
func (m *Matcher) Matches(path string, isDir bool) bool {
	if m == nil || m.ignorer == nil || path == "." || path == "" {
		return false
	}
	if isDir {
		return m.ignorer.MatchesPath(path + "/")
	}
	return m.ignorer.MatchesPath(path)
}

// Empty 报告是否没有任何规则
func (m *Matcher) Empty() bool {
	return m == nil || m.ignorer == nil
}

// Patterns 返回命令行/配置给出的规则 (不含规则文件内容)
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}
