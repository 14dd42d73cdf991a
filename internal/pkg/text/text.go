package text

import "strings"

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// CollapseSpace 将连续空白压成单个空格，用于搜索摘要入 prompt 前的清洗。
func CollapseSpace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// FirstN 取前 n 个字符（按字节），用于日志预览。
func FirstN(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
