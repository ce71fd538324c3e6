package plan

import (
	"fmt"
	"regexp"
	"strconv"
)

// SummarizeToolName is the tool invoked by inserted summarization steps.
const SummarizeToolName = "summarize"

// summarizeThought is the rationale attached to inserted summarization steps.
const summarizeThought = "I need to concisely summarize the search output"

// refPattern captures the brace form so rewritten references keep it.
var refPattern = regexp.MustCompile(`\$(\{?)(\d+)(\}?)`)

// Record is one tokenized plan step before it becomes a Task.
type Record struct {
	Thought string
	ID      int
	Tool    string
	Args    string
	// Synthetic is set on steps inserted by the rewrite pass.
	Synthetic bool
}

// IsFuse reports whether the record is the terminal step.
func (r Record) IsFuse() bool {
	return r.Tool == fuseName
}

// summarizeRecord builds the step that condenses the output of search step id.
func summarizeRecord(searchArgs string, id int) Record {
	return Record{
		Thought:   summarizeThought,
		ID:        id + 1,
		Tool:      SummarizeToolName,
		Args:      fmt.Sprintf("Concisely give me %s ONLY using the following context: $%d. DO NOT include any other rationale.", searchArgs, id),
		Synthetic: true,
	}
}

// remapRefs rewrites every $N or ${N} whose N is in mapping.
func remapRefs(args string, mapping map[int]int) string {
	return refPattern.ReplaceAllStringFunc(args, func(m string) string {
		sub := refPattern.FindStringSubmatch(m)
		old, err := strconv.Atoi(sub[2])
		if err != nil {
			return m
		}
		newID, ok := mapping[old]
		if !ok {
			return m
		}
		return "$" + sub[1] + strconv.Itoa(newID) + sub[3]
	})
}

// Rewrite renumbers records from 1, inserts a summarization step after every
// search-like record that is not second to last, and rewrites references so
// steps that consumed a search now consume its summary.
func Rewrite(records []Record, isSearchLike func(tool string) bool) []Record {
	out := make([]Record, 0, len(records))
	mapping := make(map[int]int, len(records))
	current := 1

	for i, rec := range records {
		mapping[rec.ID] = current
		rec.ID = current
		out = append(out, rec)

		if isSearchLike(rec.Tool) && i != len(records)-2 {
			out = append(out, summarizeRecord(rec.Args, current))
			current++
			mapping[records[i].ID] = current
		}
		current++
	}

	for i := range out {
		if out[i].Synthetic {
			// The prompt's own reference is already in the new numbering.
			out[i] = summarizeRecord(out[i-1].Args, out[i-1].ID)
			continue
		}
		out[i].Args = remapRefs(out[i].Args, mapping)
	}
	return out
}

// streamRewriter applies the same rewrite as Rewrite to records arriving one
// at a time. The summarization decision for a search record needs to know it
// is not second to last, so records after it wait for one more record, the
// fuse record, or the end of the stream. The search record itself is emitted
// immediately.
type streamRewriter struct {
	isSearchLike func(string) bool
	seen         []Record
	pos          int
	emittedPos   bool
	current      Record
	next         int
	mapping      map[int]int
	closed       bool
}

func newStreamRewriter(isSearchLike func(string) bool) *streamRewriter {
	return &streamRewriter{
		isSearchLike: isSearchLike,
		next:         1,
		mapping:      make(map[int]int),
	}
}

// push adds records and returns every rewritten record that is now decided.
// Records after a fuse record are ignored.
func (s *streamRewriter) push(recs ...Record) []Record {
	for _, r := range recs {
		if s.closed {
			break
		}
		s.seen = append(s.seen, r)
		if r.IsFuse() {
			s.closed = true
		}
	}
	return s.advance()
}

// close marks the end of input and flushes the remaining records.
func (s *streamRewriter) close() []Record {
	s.closed = true
	return s.advance()
}

func (s *streamRewriter) advance() []Record {
	var out []Record
	for s.pos < len(s.seen) {
		rec := s.seen[s.pos]
		if !s.emittedPos {
			s.mapping[rec.ID] = s.next
			s.current = rec
			s.current.ID = s.next
			s.current.Args = remapRefs(rec.Args, s.mapping)
			out = append(out, s.current)
			s.emittedPos = true
		}

		if s.isSearchLike(rec.Tool) {
			var insert bool
			switch {
			case s.closed:
				insert = s.pos != len(s.seen)-2
			case len(s.seen) > s.pos+2:
				insert = true
			default:
				return out
			}
			if insert {
				out = append(out, summarizeRecord(s.current.Args, s.current.ID))
				s.next++
				s.mapping[rec.ID] = s.next
			}
		}
		s.next++
		s.pos++
		s.emittedPos = false
	}
	return out
}
