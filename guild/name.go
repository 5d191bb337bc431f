package guild

import (
	"errors"
	"github.com/samber/lo"
	"strings"
	"unicode"
)

// MaxNameLen 名称最大字节数
const MaxNameLen = 64

// ErrInvalidName 名称为空、过长或含非法字符
var ErrInvalidName = errors.New("guild: invalid name")

// NormalizeName 去掉首尾空白后校验
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > MaxNameLen {
		return "", ErrInvalidName
	}
	if strings.ContainsFunc(trimmed, isForbidden) {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func isForbidden(r rune) bool {
	switch r {
	case '/', '\\', '?', '#':
		return true
	}
	return unicode.IsControl(r)
}

// ParseNames 逗号分隔，丢弃非法名称，按首次出现去重
func ParseNames(raw string) []string {
	names := lo.FilterMap(strings.Split(raw, ","), func(item string, _ int) (string, bool) {
		name, err := NormalizeName(item)
		return name, err == nil
	})
	return lo.Uniq(names)
}
