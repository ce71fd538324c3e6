package plan

import (
	"strings"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

// StreamParser compiles plan text as it arrives. Each Write returns the tasks
// that became fully known. A step is complete once a newline follows it, and
// the last step is flushed by Close. Nothing is returned after the fuse task.
type StreamParser struct {
	parser   *Parser
	rewriter *streamRewriter
	buf      strings.Builder
	consumed int
	done     bool
}

// NewStream creates a streaming parser sharing the parser's registry.
func (p *Parser) NewStream() *StreamParser {
	return &StreamParser{
		parser:   p,
		rewriter: newStreamRewriter(p.isSearchLike),
	}
}

// Write appends a chunk of planner output.
func (s *StreamParser) Write(chunk string) []*models.Task {
	if s.done {
		return nil
	}
	s.buf.WriteString(chunk)
	if !strings.Contains(chunk, "\n") {
		return nil
	}

	text := s.buf.String()
	end := strings.LastIndexByte(text, '\n') + 1
	return s.emit(s.rewriter.push(s.scan(text[:end])...))
}

// Close flushes any trailing step that was not followed by a newline.
func (s *StreamParser) Close() []*models.Task {
	if s.done {
		return nil
	}
	recs := s.rewriter.push(s.scan(s.buf.String())...)
	return s.emit(append(recs, s.rewriter.close()...))
}

// Done reports whether the fuse task has been emitted.
func (s *StreamParser) Done() bool {
	return s.done
}

// scan tokenizes text from the last consumed offset and advances past every match.
func (s *StreamParser) scan(text string) []Record {
	if s.consumed >= len(text) {
		return nil
	}
	rest := text[s.consumed:]
	locs := actionPattern.FindAllStringSubmatchIndex(rest, -1)
	if len(locs) == 0 {
		return nil
	}
	s.consumed += locs[len(locs)-1][1]
	return tokenize(rest, locs)
}

func (s *StreamParser) emit(recs []Record) []*models.Task {
	var tasks []*models.Task
	for _, rec := range recs {
		if s.done {
			break
		}
		task := s.parser.Task(rec)
		tasks = append(tasks, task)
		if task.IsFuse {
			s.done = true
		}
	}
	return tasks
}
