package match

import "strings"

// DecodePlainLetters переводит ответ вида «A» / «ACD» в индексы вариантов ('A' → 0).
// Если после удаления переносов и пробелов по краям остаётся что-то кроме A–Z, ok=false.
// Выход за границы списка вариантов проверяет вызывающий.
func DecodePlainLetters(s string) (idx []int, ok bool) {
	s = strings.TrimSpace(NoWrap(s))
	if s == "" {
		return nil, false
	}
	idx = make([]int, 0, len(s))
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return nil, false
		}
		idx = append(idx, int(r-'A'))
	}
	return idx, true
}
