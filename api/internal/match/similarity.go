package match

import "strings"

// Rating — лучшая пара «ответ ↔ вариант» для одного варианта.
type Rating struct {
	Target string  // ответ, на котором достигнут максимум
	Rating float64 // 0..1
}

// Similarity возвращает коэффициент Дайса по биграммам рун (пробелы игнорируются).
// Симметричен, детерминирован, результат в [0,1].
func Similarity(a, b string) float64 {
	a = strings.Join(strings.Fields(a), "")
	b = strings.Join(strings.Fields(b), "")
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}
	inter := 0
	for i := 0; i < len(rb)-1; i++ {
		k := [2]rune{rb[i], rb[i+1]}
		if n := bigrams[k]; n > 0 {
			bigrams[k] = n - 1
			inter++
		}
	}
	return 2 * float64(inter) / float64(len(ra)+len(rb)-2)
}

// BestMatch ищет среди candidates строку, наиболее похожую на main.
// При равенстве побеждает первая.
func BestMatch(main string, candidates []string) Rating {
	var (
		best  Rating
		found bool
	)
	for _, c := range candidates {
		if r := Similarity(main, c); !found || r > best.Rating {
			best = Rating{Target: c, Rating: r}
			found = true
		}
	}
	return best
}

// Ratings сопоставляет каждому варианту лучший ответ. Обе стороны проходят StripRedundant.
// Пустой вариант получает нулевой рейтинг.
func Ratings(answers, options []string) []Rating {
	stripped := make([]string, 0, len(answers))
	for _, a := range answers {
		stripped = append(stripped, StripRedundant(a))
	}
	out := make([]Rating, len(options))
	for i, opt := range options {
		opt = StripRedundant(opt)
		if opt == "" {
			continue
		}
		out[i] = BestMatch(opt, stripped)
	}
	return out
}

// ExactMatch возвращает все непустые targets, которые целиком входят хотя бы в один candidate.
// Порядок — как в targets; сравнение после StripRedundant с обеих сторон.
func ExactMatch(candidates, targets []string) []string {
	cs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		cs = append(cs, StripRedundant(c))
	}
	var out []string
	for _, t := range targets {
		t = StripRedundant(t)
		if t == "" {
			continue
		}
		for _, c := range cs {
			if strings.Contains(c, t) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
