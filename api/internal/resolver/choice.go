package resolver

import (
	"strings"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/match"
)

func (s *session) single(results []answerer.Result) error {
	all := answerer.SplitAll(results, s.r.separators)
	raw := s.rawTexts()

	switch s.r.mode {
	case Exact:
		if matched := match.ExactMatch(all, raw); len(matched) > 0 {
			set := toSet(matched)
			for i, t := range s.strippedTexts() {
				if t != "" && set[t] {
					return s.choose(i, s.options[i].Text())
				}
			}
		}
	default:
		best := -1
		ratings := match.Ratings(all, raw)
		for i, rt := range ratings {
			if rt.Rating > SimilarityThreshold && (best < 0 || rt.Rating > ratings[best].Rating) {
				best = i
			}
		}
		if best >= 0 {
			return s.choose(best, ratings[best].Target)
		}
	}

	// ответ одной буквой: «C» → третий вариант
	for _, res := range results {
		for _, a := range res.Answers() {
			idx, ok := match.DecodePlainLetters(a)
			if !ok || len(idx) != 1 || idx[0] >= len(s.options) {
				continue
			}
			return s.choose(idx[0], strings.TrimSpace(match.NoWrap(a)))
		}
	}

	s.diagnose("allAnswer", all, "options", s.strippedTexts())
	return nil
}

// candidate — варианты, подобранные по одному ответу источника.
type candidate struct {
	idx     []int
	answers []string
	sum     float64
}

func (c *candidate) add(i int, answer string, score float64) {
	c.idx = append(c.idx, i)
	c.answers = append(c.answers, answer)
	c.sum += score
}

// better: больше вариантов, при равенстве больше сумма.
func (c candidate) better(o candidate, mode MatchMode) bool {
	if len(c.idx) != len(o.idx) {
		return len(c.idx) > len(o.idx)
	}
	return mode != Exact && c.sum > o.sum
}

func (s *session) multiple(results []answerer.Result) error {
	stripped := s.strippedTexts()
	raw := s.rawTexts()

	var (
		best  candidate
		found bool
	)
	for _, res := range results {
		for _, p := range res.Pairs {
			frags := match.SplitAnswer(p.Answer, s.r.separators)
			c := s.containment(frags, stripped)
			if s.r.mode != Exact {
				if sim := similarity(frags, raw); sim.sum > c.sum {
					c = sim
				}
			}
			if len(c.idx) == 0 {
				continue
			}
			if !found || c.better(best, s.r.mode) {
				best, found = c, true
			}
		}
	}

	if found {
		for k, i := range best.idx {
			if err := s.choose(i, best.answers[k]); err != nil {
				return err
			}
		}
		return nil
	}

	// ответ буквами: «ACD»
	applied := map[int]bool{}
	for _, res := range results {
		for _, a := range res.Answers() {
			idx, ok := match.DecodePlainLetters(a)
			if !ok {
				continue
			}
			for _, i := range idx {
				if i >= len(s.options) || applied[i] {
					continue
				}
				applied[i] = true
				if err := s.choose(i, string(rune('A'+i))); err != nil {
					return err
				}
			}
		}
	}
	if len(applied) == 0 {
		s.diagnose("allAnswer", answerer.SplitAll(results, s.r.separators), "options", stripped)
	}
	return nil
}

// containment — варианты, целиком входящие в какой-нибудь фрагмент ответа.
func (s *session) containment(frags, stripped []string) candidate {
	fs := make([]string, len(frags))
	for i, f := range frags {
		fs[i] = match.StripRedundant(f)
	}
	var c candidate
	for i, t := range stripped {
		if t == "" {
			continue
		}
		for _, f := range fs {
			if strings.Contains(f, t) {
				c.add(i, f, 1)
				break
			}
		}
	}
	return c
}

func similarity(frags, raw []string) candidate {
	var c candidate
	for i, rt := range match.Ratings(frags, raw) {
		if rt.Rating > SimilarityThreshold {
			c.add(i, rt.Target, rt.Rating)
		}
	}
	return c
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
