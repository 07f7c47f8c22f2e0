package quiz

import "strings"

// Emission is a Question accepted by the Extractor.
type Emission struct {
	Question Question
	// Index is the zero-based emission order within the session.
	Index int
	// Line is the zero-based line number in the full response text.
	Line int
}

// Rejection describes a complete line that did not yield a Question.
type Rejection struct {
	Line   int
	Reason RejectReason
	Detail string
	Text   string
}

// Extractor turns a growing, newline-delimited text stream into Questions.
//
// Only complete lines are evaluated: the text after the last newline is
// held back until a later fragment terminates it or Finish is called.
// The watermark advances past a line only when that line yields a
// Question; rejected lines after the watermark are evaluated again on the
// next pass. The buffer keeps only the text from the watermark onwards.
//
// An Extractor is owned by one session and is not safe for concurrent use.
type Extractor struct {
	// MaxAttempts, when positive, stops re-evaluating a rejected line after
	// it has failed that many times. Zero re-evaluates on every pass.
	MaxAttempts int

	// OnReject, when set, is called once per rejected line, on its first
	// failure. Blank lines are not reported.
	OnReject func(Rejection)

	buf      string // text from line `base` onwards
	base     int    // absolute index of the first line in buf (the watermark)
	count    int
	rejected int
	attempts map[int]int
	finished bool
}

// NewExtractor returns an Extractor with the compatible defaults.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Push appends a fragment and returns the Questions completed by it.
func (e *Extractor) Push(fragment string) []Emission {
	if e.finished {
		return nil
	}
	e.buf += fragment

	lines := strings.Split(e.buf, "\n")
	// The last element has no terminator yet.
	return e.scan(lines[:len(lines)-1])
}

// Finish evaluates everything from the watermark, including the
// unterminated last line, and returns the Questions found. Later calls to
// Push or Finish return nil.
func (e *Extractor) Finish() []Emission {
	if e.finished {
		return nil
	}
	e.finished = true
	out := e.scan(strings.Split(e.buf, "\n"))
	e.buf = ""
	return out
}

// Count returns the number of Questions emitted so far.
func (e *Extractor) Count() int {
	return e.count
}

// Rejected returns the number of distinct non-blank lines rejected so far.
func (e *Extractor) Rejected() int {
	return e.rejected
}

// Watermark returns the absolute index of the first line not yet confirmed.
func (e *Extractor) Watermark() int {
	return e.base
}

// Buffered returns the number of bytes retained after the watermark.
func (e *Extractor) Buffered() int {
	return len(e.buf)
}

// scan evaluates candidate lines, which start at the watermark, in order.
func (e *Extractor) scan(candidates []string) []Emission {
	var out []Emission
	advance := 0

	for i, line := range candidates {
		abs := e.base + i
		if e.exhausted(abs) {
			continue
		}

		res := ClassifyLine(line)
		if !res.Valid() {
			e.recordFailure(abs, res, line)
			continue
		}

		out = append(out, Emission{Question: res.Question, Index: e.count, Line: abs})
		e.count++
		advance = i + 1
	}

	if advance > 0 {
		e.dropLines(advance)
	}
	return out
}

// dropLines discards the first n lines of the buffer and moves the
// watermark past them.
func (e *Extractor) dropLines(n int) {
	cut := 0
	for range n {
		next := strings.IndexByte(e.buf[cut:], '\n')
		if next < 0 {
			// Only reachable from Finish, where the last line has no
			// terminator.
			cut = len(e.buf)
			break
		}
		cut += next + 1
	}
	e.buf = e.buf[cut:]
	e.base += n

	for line := range e.attempts {
		if line < e.base {
			delete(e.attempts, line)
		}
	}
}

func (e *Extractor) exhausted(line int) bool {
	return e.MaxAttempts > 0 && e.attempts[line] >= e.MaxAttempts
}

func (e *Extractor) recordFailure(line int, res ShapeResult, text string) {
	if res.Reason == ReasonBlank {
		return
	}
	if e.attempts == nil {
		e.attempts = make(map[int]int)
	}
	e.attempts[line]++
	if e.attempts[line] > 1 {
		return
	}

	e.rejected++
	if e.OnReject != nil {
		e.OnReject(Rejection{
			Line:   line,
			Reason: res.Reason,
			Detail: res.Detail,
			Text:   strings.TrimSpace(text),
		})
	}
}
