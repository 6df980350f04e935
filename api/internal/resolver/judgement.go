package resolver

import (
	"strings"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/match"
)

var (
	affirmative = keywordSet("是", "对", "正确", "确定", "√", "对的", "是的", "正确的", "true", "True", "T", "yes", "1")
	negative    = keywordSet("非", "否", "错", "错误", "×", "X", "错的", "不对", "不正确的", "不正确", "不是", "不是的", "false", "False", "F", "no", "0")
)

var glyphs = strings.NewReplacer(
	"✓", "√", "✔", "√", "☑", "√",
	"✗", "×", "✘", "×", "✕", "×", "✖", "×", "╳", "×",
)

// judgementKey приводит ответ и текст варианта к одному виду.
func judgementKey(s string) string {
	return match.ClearString(glyphs.Replace(match.StripRedundant(s)), '√', '×')
}

func keywordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[judgementKey(w)] = true
	}
	return m
}

func (s *session) judgement(results []answerer.Result) error {
	keys := make([]string, len(s.options))
	for i, o := range s.options {
		keys[i] = judgementKey(o.Text())
	}
	pick := func(set map[string]bool) int {
		for i, k := range keys {
			if set[k] {
				return i
			}
		}
		return -1
	}

	for _, res := range results {
		for _, a := range res.Answers() {
			k := judgementKey(a)
			i := -1
			switch {
			case affirmative[k]:
				i = pick(affirmative)
			case negative[k]:
				i = pick(negative)
			}
			if i >= 0 {
				return s.choose(i, a)
			}
		}
	}
	s.diagnose("answers", answerer.SplitAll(results, s.r.separators), "options", keys)
	return nil
}
