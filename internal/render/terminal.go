// Package render prints generated questions to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/abhisek/mcqgen/internal/quiz"
	"github.com/abhisek/mcqgen/internal/ui/theme"
)

const defaultWrap = 100

// Options controls terminal output.
type Options struct {
	// Plain disables markdown rendering and colors.
	Plain bool
	// ShowAnswers marks the correct option and prints the explanation.
	ShowAnswers bool
	// Width is the word-wrap width for markdown. Zero uses 100.
	Width int
}

// Terminal implements quiz.Emitter for a human reader.
type Terminal struct {
	out      io.Writer
	opts     Options
	markdown *glamour.TermRenderer
}

var _ quiz.Emitter = (*Terminal)(nil)

// NewTerminal creates a Terminal writing to out. If the markdown renderer
// cannot be built, output falls back to plain text.
func NewTerminal(out io.Writer, opts Options) *Terminal {
	t := &Terminal{out: out, opts: opts}
	if !opts.Plain {
		width := opts.Width
		if width <= 0 {
			width = defaultWrap
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			t.markdown = md
		} else {
			t.opts.Plain = true
		}
	}
	return t
}

// Header prints what is about to be generated.
func (t *Terminal) Header(req quiz.GenerateRequest) error {
	line := fmt.Sprintf("%d %s questions on %q via %s",
		req.QuestionCount, req.Difficulty, req.Prompt, req.AIModel)
	if t.opts.Plain {
		_, err := fmt.Fprintln(t.out, line)
		return err
	}
	_, err := fmt.Fprintln(t.out, theme.Banner.Render(theme.Title.Render("mcqgen")+" "+theme.Label.Render(line)))
	return err
}

// Question prints one question as it arrives.
func (t *Terminal) Question(q quiz.Question, index int) error {
	if t.opts.Plain {
		_, err := io.WriteString(t.out, t.plainQuestion(q, index))
		return err
	}

	rendered, err := t.markdown.Render(t.markdownQuestion(q, index))
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprintln(t.out, strings.TrimRight(rendered, "\n"))
	return err
}

// Complete prints the closing summary.
func (t *Terminal) Complete(total int) error {
	msg := fmt.Sprintf("✓ %d %s generated", total, plural(total, "question"))
	if !t.opts.Plain {
		msg = theme.Correct.Render(msg)
	}
	_, err := fmt.Fprintln(t.out, msg)
	return err
}

// Error prints a failure message.
func (t *Terminal) Error(message string) error {
	msg := "✗ " + message
	if !t.opts.Plain {
		msg = theme.Failed.Render(msg)
	}
	_, err := fmt.Fprintln(t.out, msg)
	return err
}

func (t *Terminal) markdownQuestion(q quiz.Question, index int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %d. %s\n\n", index+1, q.Question)
	for i, opt := range q.Options {
		if t.opts.ShowAnswers && i == q.CorrectAnswer {
			fmt.Fprintf(&b, "- **%s. %s** ✓\n", optionLabel(i), opt)
			continue
		}
		fmt.Fprintf(&b, "- %s. %s\n", optionLabel(i), opt)
	}
	if t.opts.ShowAnswers && q.Explanation != "" {
		fmt.Fprintf(&b, "\n> %s\n", q.Explanation)
	}
	return b.String()
}

func (t *Terminal) plainQuestion(q quiz.Question, index int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", index+1, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "   %s) %s\n", optionLabel(i), opt)
	}
	if t.opts.ShowAnswers {
		fmt.Fprintf(&b, "   Answer: %s", optionLabel(q.CorrectAnswer))
		if q.Explanation != "" {
			fmt.Fprintf(&b, ". %s", q.Explanation)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// optionLabel maps 0 to A, 1 to B and so on. A negative index is an
// answer that could not be read; indexes past Z are printed as numbers.
func optionLabel(i int) string {
	if i < 0 {
		return "?"
	}
	if i >= 26 {
		return fmt.Sprintf("#%d", i)
	}
	return string(rune('A' + i))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
