package match

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultSeparators — разделители ответов, если в конфиге ничего не задано.
var DefaultSeparators = []string{"===", "#", "---", "###", "|", ";"}

// разделители после буквы варианта: «A.», «B、», «C:», «D)»
const letterDelims = ".、:)"

// StripRedundant убирает шум оформления: NFKC, лишние пробелы и переносы,
// буквенный префикс варианта («A. Пекин» → «Пекин»).
func StripRedundant(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return stripOptionPrefix(s)
}

func stripOptionPrefix(s string) string {
	rs := []rune(s)
	if len(rs) < 2 || rs[0] < 'A' || rs[0] > 'Z' {
		return s
	}
	i := 1
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	if i < len(rs) && strings.ContainsRune(letterDelims, rs[i]) {
		i++
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
		if i < len(rs) {
			return string(rs[i:])
		}
		return s
	}
	// «A 北京»: буква, пробел, иероглиф
	if i > 1 && i < len(rs) && unicode.Is(unicode.Han, rs[i]) {
		return string(rs[i:])
	}
	return s
}

// NoWrap удаляет переводы строк.
func NoWrap(s string) string {
	return strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(s)
}

// ClearString приводит к нижнему регистру и оставляет только иероглифы,
// латиницу, цифры и руны из keep.
func ClearString(s string, keep ...rune) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.Is(unicode.Han, r),
			r >= 'a' && r <= 'z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			for _, k := range keep {
				if r == k {
					b.WriteRune(r)
					break
				}
			}
		}
	}
	return b.String()
}

// SplitAnswer делит ответ на фрагменты. JSON-массив разбирается поэлементно,
// иначе используется первый разделитель, дающий больше одной части.
// Пустые части отбрасываются, фрагменты обрезаются по краям.
func SplitAnswer(answer string, separators []string) []string {
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	trimmed := strings.TrimSpace(answer)
	if strings.HasPrefix(trimmed, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	for _, sep := range separators {
		if sep == "" {
			continue
		}
		parts := strings.Split(answer, sep)
		if len(parts) < 2 {
			continue
		}
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{trimmed}
}

// RemoveWords вырезает из строки первое вхождение каждого слова.
func RemoveWords(s string, words []string) string {
	for _, w := range words {
		if w == "" {
			continue
		}
		s = strings.Replace(s, w, "", 1)
	}
	return s
}
