package reading

import "sort"

// OpTag names the edit operation an [Op] represents.
type OpTag string

const (
	// OpEqual marks a run of tokens present in both sequences.
	OpEqual OpTag = "equal"
	// OpDelete marks expected tokens absent from the spoken sequence.
	OpDelete OpTag = "delete"
	// OpInsert marks spoken tokens absent from the expected sequence.
	OpInsert OpTag = "insert"
	// OpReplace marks expected tokens spoken as something else.
	OpReplace OpTag = "replace"
)

// Op describes how expected[I1:I2] relates to spoken[J1:J2].
type Op struct {
	Tag            OpTag
	I1, I2, J1, J2 int
}

// match is a maximal run of identical tokens starting at a in the expected
// sequence and b in the spoken sequence.
type match struct {
	a, b, size int
}

// Aligner computes the word-level alignment between an expected and a spoken
// token sequence using the Ratcliff/Obershelp strategy: find the longest run
// of tokens the two sequences share, then recurse on the unmatched pieces to
// the left and right. Ties on run length resolve to the earliest position in
// the expected sequence, then the earliest in the spoken one, which keeps the
// reported error position deterministic.
type Aligner struct {
	a, b    []string
	b2j     map[string][]int
	matches []match
}

// NewAligner prepares an alignment of spoken against expected.
func NewAligner(expected, spoken []string) *Aligner {
	al := &Aligner{
		a:   expected,
		b:   spoken,
		b2j: make(map[string][]int, len(spoken)),
	}
	for j, tok := range spoken {
		al.b2j[tok] = append(al.b2j[tok], j)
	}
	return al
}

// longestMatch finds the longest matching run within a[alo:ahi] and
// b[blo:bhi]. The running-length map tracks, for every end position j in b,
// the length of the match ending at (i, j); extending it row by row keeps the
// scan linear in the number of token occurrences.
func (al *Aligner) longestMatch(alo, ahi, blo, bhi int) match {
	best := match{a: alo, b: blo}
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range al.b2j[al.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.size {
				best = match{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = next
	}
	return best
}

// matchingBlocks returns all maximal shared runs in order of position, with a
// zero-size sentinel at the end of both sequences.
func (al *Aligner) matchingBlocks() []match {
	if al.matches != nil {
		return al.matches
	}
	type span struct {
		alo, ahi, blo, bhi int
	}
	queue := []span{{0, len(al.a), 0, len(al.b)}}
	var found []match
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		m := al.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if m.size == 0 {
			continue
		}
		found = append(found, m)
		if s.alo < m.a && s.blo < m.b {
			queue = append(queue, span{s.alo, m.a, s.blo, m.b})
		}
		if m.a+m.size < s.ahi && m.b+m.size < s.bhi {
			queue = append(queue, span{m.a + m.size, s.ahi, m.b + m.size, s.bhi})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].a != found[j].a {
			return found[i].a < found[j].a
		}
		return found[i].b < found[j].b
	})

	// Merge runs that ended up adjacent in both sequences.
	var merged []match
	for _, m := range found {
		if n := len(merged); n > 0 &&
			merged[n-1].a+merged[n-1].size == m.a &&
			merged[n-1].b+merged[n-1].size == m.b {
			merged[n-1].size += m.size
			continue
		}
		merged = append(merged, m)
	}
	al.matches = append(merged, match{a: len(al.a), b: len(al.b)})
	return al.matches
}

// Opcodes returns the edit operations that turn the expected sequence into
// the spoken one, in left-to-right order. Consecutive operations never share
// a tag and together cover both sequences completely.
func (al *Aligner) Opcodes() []Op {
	var ops []Op
	i, j := 0, 0
	for _, m := range al.matchingBlocks() {
		var tag OpTag
		switch {
		case i < m.a && j < m.b:
			tag = OpReplace
		case i < m.a:
			tag = OpDelete
		case j < m.b:
			tag = OpInsert
		}
		if tag != "" {
			ops = append(ops, Op{Tag: tag, I1: i, I2: m.a, J1: j, J2: m.b})
		}
		i, j = m.a+m.size, m.b+m.size
		if m.size > 0 {
			ops = append(ops, Op{Tag: OpEqual, I1: m.a, I2: i, J1: m.b, J2: j})
		}
	}
	return ops
}

// Ratio measures the overall similarity of the two sequences as
// 2*matched/total, in [0, 1]. Two empty sequences are identical, so their
// ratio is 1.
func (al *Aligner) Ratio() float64 {
	total := len(al.a) + len(al.b)
	if total == 0 {
		return 1.0
	}
	matched := 0
	for _, m := range al.matchingBlocks() {
		matched += m.size
	}
	return 2.0 * float64(matched) / float64(total)
}
