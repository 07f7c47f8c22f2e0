package quiz

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RejectReason says why a line or value did not become a Question.
type RejectReason string

const (
	ReasonNone                 RejectReason = ""
	ReasonBlank                RejectReason = "blank"
	ReasonNotDelimited         RejectReason = "not-delimited"
	ReasonUnparsable           RejectReason = "unparsable"
	ReasonNotObject            RejectReason = "not-object"
	ReasonMissingQuestion      RejectReason = "missing-question"
	ReasonMissingOptions       RejectReason = "missing-options"
	ReasonMissingCorrectAnswer RejectReason = "missing-correct-answer"
)

// ShapeResult is the outcome of a shape check: a Question when Reason is
// ReasonNone, otherwise the rejection reason.
type ShapeResult struct {
	Question Question
	Reason   RejectReason
	// Detail names the offending field or parse error, for logs.
	Detail string
}

// Valid reports whether the value was promoted to a Question.
func (r ShapeResult) Valid() bool {
	return r.Reason == ReasonNone
}

func reject(reason RejectReason, detail string) ShapeResult {
	return ShapeResult{Reason: reason, Detail: detail}
}

// ClassifyLine trims line and runs the line-level checks before
// ValidateShape: blank lines and lines not wrapped in braces are rejected
// without parsing.
func ClassifyLine(line string) ShapeResult {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return reject(ReasonBlank, "")
	}
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return reject(ReasonNotDelimited, "")
	}
	return ValidateShape([]byte(trimmed))
}

// ValidateShape decodes raw and checks that the required fields are
// present: a truthy question, truthy options, and a correctAnswer of any
// value, null included. Types and ranges are not checked. Fields that do
// not fit the typed view are left at best-effort values, listed by
// Question.Loose, and still travel in the raw object.
func ValidateShape(raw []byte) ShapeResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		if json.Valid(raw) {
			return reject(ReasonNotObject, "")
		}
		return reject(ReasonUnparsable, err.Error())
	}
	if fields == nil {
		// Literal null.
		return reject(ReasonNotObject, "")
	}

	var q Question

	text, ok := fields["question"]
	if !ok || !truthy(text) {
		return reject(ReasonMissingQuestion, "")
	}
	if err := json.Unmarshal(text, &q.Question); err != nil {
		q.Question = string(bytes.TrimSpace(text))
		q.loose = append(q.loose, "question")
	}

	options, ok := fields["options"]
	if !ok || !truthy(options) {
		return reject(ReasonMissingOptions, "")
	}
	if opts, ok := decodeOptions(options); ok {
		q.Options = opts
	} else {
		q.loose = append(q.loose, "options")
	}

	answer, ok := fields["correctAnswer"]
	if !ok {
		return reject(ReasonMissingCorrectAnswer, "")
	}
	if idx, ok := decodeIndex(answer); ok {
		q.CorrectAnswer = idx
	} else {
		q.CorrectAnswer = -1
		q.loose = append(q.loose, "correctAnswer")
	}

	if expl, ok := fields["explanation"]; ok {
		// Non-string explanations are dropped from the typed view; they
		// still travel in the raw object.
		_ = json.Unmarshal(expl, &q.Explanation)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		q.raw = compact.Bytes()
	}

	return ShapeResult{Question: q}
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// truthy reports whether v is anything other than null, false, zero or the
// empty string. Empty arrays and objects are truthy.
func truthy(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	switch string(t) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(t), 64); err == nil {
		return f != 0
	}
	return true
}

// decodeOptions accepts any JSON array. Non-string items are kept as their
// JSON text.
func decodeOptions(v json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if !isNull(item) && json.Unmarshal(item, &s) == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(item))
	}
	return out, true
}

// decodeIndex reads an option index from an integral number (1.0 counts),
// a string holding one, or a single option letter such as "B".
func decodeIndex(v json.RawMessage) (int, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if len(s) == 1 {
			if c := s[0] | 0x20; c >= 'a' && c <= 'z' {
				return int(c - 'a'), true
			}
		}
		return integral(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	return integral(n.String())
}

func integral(s string) (int, bool) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false
	}
	return int(f), true
}
