package common

import (
	"regexp"
	"strings"
)

var (
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	codeFencePattern     = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*\n?(.*?)```")
)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號
func QuoteJSONKeys(raw string) string {
	return unquotedKeyPattern.ReplaceAllString(raw, `$1"$2":`)
}

// RemoveTrailingCommas 移除物件與陣列結尾多餘的逗號
func RemoveTrailingCommas(raw string) string {
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}

// StripCodeFence 若內容包在 markdown code fence 中，取出 fence 內文字；
// 未閉合的 fence 只移除開頭標記
func StripCodeFence(raw string) string {
	if m := codeFencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		if nl := strings.IndexByte(trimmed, '\n'); nl != -1 {
			return strings.TrimSpace(trimmed[nl+1:])
		}
		return ""
	}
	return trimmed
}
