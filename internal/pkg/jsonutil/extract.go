package jsonutil

import (
	"strings"
)

const codeFence = "```"

// ExtractJSON 从模型返回的自由文本中提取首个 JSON 对象或数组。
// 优先剥离 markdown 代码围栏，其次按括号配对扫描（忽略字符串内部的括号）。
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := extractFromFence(raw); ok {
		return block, true
	}
	if obj, ok := scanBalanced(raw, '{', '}'); ok {
		return obj, true
	}
	return scanBalanced(raw, '[', ']')
}

// ExtractJSONObject 只接受 JSON 对象。
func ExtractJSONObject(raw string) (string, bool) {
	out, ok := ExtractJSON(raw)
	if !ok || !strings.HasPrefix(out, "{") {
		return "", false
	}
	return out, true
}

func extractFromFence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// 去掉围栏首行的语言标记（```json）
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", false
	}
	if obj, ok := scanBalanced(block, '{', '}'); ok {
		return obj, true
	}
	if arr, ok := scanBalanced(block, '[', ']'); ok {
		return arr, true
	}
	return block, true
}

func scanBalanced(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
