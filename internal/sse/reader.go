package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Payload is a decoded event of any kind. Exactly one of the groups of
// fields is set, matching QuestionEvent, CompleteEvent or ErrorEvent.
type Payload struct {
	Question       json.RawMessage `json:"question,omitempty"`
	Index          int             `json:"index"`
	Complete       bool            `json:"complete,omitempty"`
	TotalQuestions int             `json:"totalQuestions"`
	Error          string          `json:"error,omitempty"`
}

// Terminal reports whether the payload ends a session.
func (p Payload) Terminal() bool {
	return p.Complete || p.Error != ""
}

// Read decodes data frames from r until EOF, calling fn for each. Comment
// lines and non-data fields are skipped.
func Read(r io.Reader, fn func(Payload) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var data strings.Builder
	dispatch := func() error {
		if data.Len() == 0 {
			return nil
		}
		var p Payload
		if err := json.Unmarshal([]byte(data.String()), &p); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		data.Reset()
		return fn(p)
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return dispatch()
}
