package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"
	"unicode/utf8"

	"dirscan/pkg/compare"
	"dirscan/pkg/types"
)

// flushEvery 限制 tabwriter 缓冲的行数，大目录不会把整个报告留在内存里
const flushEvery = 256

// Text 以对齐的列输出记录
type Text struct {
	w       io.Writer
	tw      *tabwriter.Writer
	rows    int
	headers bool
}

func NewText(w io.Writer) *Text {
	return &Text{w: w, tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (t *Text) Record(rec DiffRecord) error {
	if !t.headers {
		t.headers = true
		fmt.Fprintf(t.tw, "CLASS\tTYPES\tPATH\tDETAIL\n")
	}

	detail := rec.Detail
	if rec.Err != "" && !strings.Contains(detail, rec.Err) {
		detail += " (" + rec.Err + ")"
	}
	if _, err := fmt.Fprintf(t.tw, "%s %s\t%s\t%s\t%s\n", rec.Marker, rec.Class, rec.Kinds, displayPath(rec.Path), displayPath(detail)); err != nil {
		return err
	}

	t.rows++
	if t.rows%flushEvery == 0 {
		return t.tw.Flush()
	}
	return nil
}

func (t *Text) Group(g GroupRecord) error {
	if err := t.tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(t.w, "%s (%d files)\n", types.Hash(g.Hash).Short(), len(g.Paths))
	for _, p := range g.Paths {
		fmt.Fprintf(t.w, "    %s\n", displayPath(p))
	}
	return nil
}

func (t *Text) Flush() error {
	return t.tw.Flush()
}

// displayPath 对包含不可打印字符的路径加引号，避免破坏终端输出
func displayPath(p string) string {
	if !utf8.ValidString(p) || strings.ContainsFunc(p, func(r rune) bool { return !unicode.IsPrint(r) }) {
		return strconv.Quote(p)
	}
	return p
}

// Summary 统计每种结论出现的次数
type Summary struct {
	counts map[compare.Class]int
	total  int
}

func NewSummary() *Summary {
	return &Summary{counts: make(map[compare.Class]int)}
}

func (s *Summary) Add(c compare.Class) {
	s.counts[c]++
	s.total++
}

func (s *Summary) Count(c compare.Class) int { return s.counts[c] }
func (s *Summary) Total() int                { return s.total }

// Differences 返回既不相同也不是单纯扫描结果的条目数量
func (s *Summary) Differences() int {
	n := s.total
	for _, c := range []compare.Class{compare.Equal, compare.Scanned, compare.Excluded} {
		n -= s.counts[c]
	}
	return n
}

// Print 按结论顺序输出非零的计数
func (s *Summary) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nSummary:\n")
	for c := compare.Equal; c <= compare.RightRenamed; c++ {
		if n := s.counts[c]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", c, n)
		}
	}
	fmt.Fprintf(tw, "  total\t%d\n", s.total)
	return tw.Flush()
}
