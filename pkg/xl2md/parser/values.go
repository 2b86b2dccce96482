// Package parser implements the sheet-to-structured-document pipeline:
// cell value normalization, table region detection, embedded object
// extraction and cross-sheet reference analysis.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"
)

// builtInNumFmt maps built-in numFmtId values to their format codes.
// Only the IDs relevant to classification are listed; everything else
// renders as General.
var builtInNumFmt = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	14: "m/d/yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

var currencyGlyphs = []string{"$", "¥", "€", "£", "￥"}

// FormatCode resolves the effective number format code for a cell:
// the style's custom format when present, else the built-in code for its
// numFmtId, else "".
func FormatCode(f *excelize.File, sheet, cell string) string {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return ""
	}
	style, err := f.GetStyle(idx)
	if err != nil || style == nil {
		return ""
	}
	if style.CustomNumFmt != nil && *style.CustomNumFmt != "" {
		return *style.CustomNumFmt
	}
	if code, ok := builtInNumFmt[style.NumFmt]; ok {
		return code
	}
	return ""
}

// Normalize renders a raw cell value as a human-readable string using its
// number format code. Dates, percentages, currency and thousands-separated
// numbers are recognized; anything else falls back to the value's default
// string form. Normalize never panics.
func Normalize(value any, formatCode string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = defaultString(value)
		}
	}()

	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		meta := classifyFormat(formatCode)
		if meta.wantsTime {
			return v.Format("2006-01-02 15:04:05")
		}
		return v.Format("2006-01-02")
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return normalizeNumber(v, formatCode)
	case int:
		return normalizeNumber(float64(v), formatCode)
	case int64:
		return normalizeNumber(float64(v), formatCode)
	case string:
		// Numeric text only takes the number path when the format code
		// actually asks for special rendering; plain text stays verbatim.
		meta := classifyFormat(formatCode)
		if meta.any() {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return normalizeNumber(f, formatCode)
			}
		}
		return v
	default:
		return fmt.Sprint(value)
	}
}

func defaultString(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// formatMeta is the classification of one format code.
type formatMeta struct {
	isDate       bool
	wantsTime    bool
	isPercent    bool
	isCurrency   bool
	hasThousands bool
	decimals     int
	symbol       string
}

func (m formatMeta) any() bool {
	return m.isDate || m.isPercent || m.isCurrency || m.hasThousands || m.decimals > 0
}

// classifyFormat scans a format code once and records which rendering
// branch applies. Token-level inspection is delegated to nfp, the parser
// excelize itself builds on.
func classifyFormat(code string) formatMeta {
	var m formatMeta
	if code == "" || code == "General" || code == "@" {
		return m
	}

	m.isDate, m.wantsTime = detectDateTokens(code)

	ps := nfp.NumberFormatParser()
	sections := ps.Parse(code)
	if len(sections) == 0 {
		return m
	}
	afterDecimal := false
	for _, tok := range sections[0].Items {
		switch tok.TType {
		case nfp.TokenTypePercent:
			m.isPercent = true
		case nfp.TokenTypeThousandsSeparator:
			m.hasThousands = true
		case nfp.TokenTypeDecimalPoint:
			afterDecimal = true
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder:
			if afterDecimal {
				m.decimals += len(tok.TValue)
			}
		case nfp.TokenTypeCurrencyLanguage:
			m.isCurrency = true
		case nfp.TokenTypeLiteral:
			if g := glyphIn(tok.TValue); g != "" {
				m.isCurrency = true
			}
		}
	}
	if m.isCurrency {
		m.symbol = glyphIn(code)
		if m.symbol == "" {
			m.symbol = "$"
		}
		// A currency code always groups thousands in the output.
		m.isDate = false
	}
	if m.isPercent {
		m.isDate = false
	}
	return m
}

func glyphIn(s string) string {
	for _, g := range currencyGlyphs {
		if strings.Contains(s, g) {
			return g
		}
	}
	return ""
}

// detectDateTokens reports whether a format code denotes a calendar date,
// and whether it additionally carries time-of-day tokens. Pure
// time-of-day codes (h/s without y, d or a standalone month) are not
// dates. Quoted literals and bracketed sections ([Red], [$-411], [h]) are
// skipped so their letters cannot masquerade as date tokens.
func detectDateTokens(code string) (isDate, wantsTime bool) {
	var hasYD, hasM, hasHS bool
	inQuote, inBracket, escaped := false, false, false
	for _, ch := range code {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case inBracket:
			if ch == ']' {
				inBracket = false
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			escaped = true
		case ch == 'y' || ch == 'Y' || ch == 'd' || ch == 'D' || ch == '年' || ch == '月' || ch == '日':
			hasYD = true
		case ch == 'm' || ch == 'M':
			hasM = true
		case ch == 'h' || ch == 'H' || ch == 's' || ch == 'S':
			hasHS = true
		}
	}
	isDate = hasYD || (hasM && !hasHS)
	wantsTime = isDate && hasHS
	return isDate, wantsTime
}

func normalizeNumber(val float64, code string) string {
	meta := classifyFormat(code)
	switch {
	case meta.isDate:
		return renderSerial(val, meta.wantsTime)
	case meta.isPercent:
		return strconv.FormatFloat(val*100, 'f', 2, 64) + "%"
	case meta.isCurrency:
		s := strconv.FormatFloat(val, 'f', meta.decimals, 64)
		intPart, fracPart, found := strings.Cut(s, ".")
		s = groupThousands(intPart)
		if found {
			s += "." + fracPart
		}
		return meta.symbol + s
	case meta.hasThousands || meta.decimals > 0:
		s := strconv.FormatFloat(val, 'f', meta.decimals, 64)
		if meta.hasThousands {
			intPart, fracPart, found := strings.Cut(s, ".")
			s = groupThousands(intPart)
			if found {
				s += "." + fracPart
			}
		}
		return s
	default:
		return renderGeneral(val)
	}
}

// renderSerial converts a numeric day-serial to a calendar date string.
//
// The serial epoch is the 1900 date system: day 1 is 1900-01-01. Serials
// 1..60 are offsets from 1899-12-31; serials from 61 on subtract one extra
// day to absorb the phantom 1900-02-29 that the original Lotus epoch
// counted. A single-offset conversion would misdate every value before
// the correction point, so both branches are required. Serials below 1
// carry only a time of day.
func renderSerial(serial float64, wantsTime bool) string {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 {
		return renderGeneral(serial)
	}
	days := int(serial)
	fracSec := int64(math.Round((serial - math.Trunc(serial)) * 86400))
	if fracSec < 0 {
		fracSec = 0
	} else if fracSec > 86399 {
		fracSec = 86399
	}

	base := time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	var t time.Time
	switch {
	case days == 0:
		return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(fracSec) * time.Second).Format("15:04:05")
	case days >= 61:
		t = base.Add(time.Duration(days-1)*24*time.Hour + time.Duration(fracSec)*time.Second)
	default:
		t = base.Add(time.Duration(days)*24*time.Hour + time.Duration(fracSec)*time.Second)
	}
	if wantsTime {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02")
}

// renderGeneral formats a float in General style: integers without a
// decimal point, fractions in shortest representation.
func renderGeneral(val float64) string {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return strconv.FormatFloat(val, 'G', -1, 64)
	}
	if val == math.Trunc(val) && math.Abs(val) < 1e15 {
		return strconv.FormatInt(int64(val), 10)
	}
	return strconv.FormatFloat(val, 'G', -1, 64)
}

// groupThousands inserts comma separators into a decimal integer string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) > 3 {
		var sb strings.Builder
		lead := len(s) % 3
		if lead > 0 {
			sb.WriteString(s[:lead])
		}
		for i := lead; i < len(s); i += 3 {
			if sb.Len() > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(s[i : i+3])
		}
		s = sb.String()
	}
	if neg {
		return "-" + s
	}
	return s
}
