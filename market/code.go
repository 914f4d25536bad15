package market

import "strings"

// A 股代码工具。上游接口各自要求不同的代码形态：新浪要 sh600519，
// 东方财富要 1.600519，纯数字则来自用户输入。

// NormalizeCode returns the bare 6-digit code, stripping any sh/sz/bj
// prefix or exchange suffix.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	for _, prefix := range []string{"sh", "sz", "bj"} {
		code = strings.TrimPrefix(code, prefix)
	}
	if i := strings.IndexByte(code, '.'); i >= 0 {
		code = code[:i]
	}
	return code
}

// ExchangeFor reports the exchange prefix for a bare code: 6/5/9 开头为
// 上海，其余按深圳处理.
func ExchangeFor(code string) string {
	if code == "" {
		return "sz"
	}
	switch code[0] {
	case '6', '5', '9':
		return "sh"
	default:
		return "sz"
	}
}

// SinaSymbol converts a code to the Sina quote symbol, e.g. sh600519.
func SinaSymbol(code string) string {
	bare := NormalizeCode(code)
	return ExchangeFor(bare) + bare
}

// ValidCode reports whether code looks like an A-share code after
// normalization: exactly six digits.
func ValidCode(code string) bool {
	bare := NormalizeCode(code)
	if len(bare) != 6 {
		return false
	}
	for _, c := range bare {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
