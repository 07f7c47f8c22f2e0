package quiz

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an educator writing multiple-choice quiz questions.
Questions must be factually accurate, unambiguous, and answerable from general knowledge of the topic.`

var difficultyGuidelines = map[Difficulty][]string{
	DifficultyEasy: {
		"Use simple, straightforward language",
		"Focus on basic concepts and definitions",
		"Include obvious wrong answers that are clearly incorrect",
		"Target beginner-level knowledge",
		"Avoid complex scenarios or edge cases",
	},
	DifficultyMedium: {
		"Use moderate complexity in language and concepts",
		"Include some application-based questions",
		"Mix definition and application questions",
		"Include plausible distractors that require thinking",
		"Target intermediate-level knowledge",
	},
	DifficultyHard: {
		"Use advanced terminology and complex scenarios",
		"Focus on application, analysis, and synthesis",
		"Include subtle distinctions between options",
		"Create challenging distractors that test deep understanding",
		"Include edge cases and advanced concepts",
		"Target expert-level knowledge",
	},
}

const lineExample = `{"question": "Your question here", "options": ["Option A", "Option B", "Option C", "Option D"], "correctAnswer": 0, "explanation": "Brief explanation"}`

// StreamPrompt asks for one self-contained JSON object per line so the
// response can be extracted while it is still arriving.
func StreamPrompt(req GenerateRequest) string {
	level := strings.ToUpper(string(req.Difficulty))
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d multiple choice questions at %s difficulty level based on the following topic/prompt: %q.\n\n",
		req.QuestionCount, level, req.Prompt)
	b.WriteString("IMPORTANT: Generate questions one by one, with each question as a complete JSON object on its own line.\n\n")
	b.WriteString("Format each question as a single line JSON object like this:\n")
	b.WriteString(lineExample)
	b.WriteString("\n\nRequirements:\n")
	fmt.Fprintf(&b, "- Generate exactly %d questions\n", req.QuestionCount)
	b.WriteString("- Each question on a separate line as valid JSON\n")
	b.WriteString("- correctAnswer should be the index (0, 1, 2, or 3) of the correct option\n")
	b.WriteString("- Questions should be educational and cover different aspects of the topic\n")
	b.WriteString("- Each line should be a complete, valid JSON object\n")
	b.WriteString("- Do not wrap the output in code fences and do not add any other text\n\n")
	writeGuidelines(&b, req.Difficulty)
	b.WriteString("\nStart generating now:")

	return b.String()
}

// BatchPrompt asks for a single {"questions": [...]} document.
func BatchPrompt(req GenerateRequest) string {
	level := strings.ToUpper(string(req.Difficulty))
	var b strings.Builder

	fmt.Fprintf(&b, "Generate EXACTLY %d multiple choice questions at %s difficulty level based on the following topic/prompt: %q.\n\n",
		req.QuestionCount, level, req.Prompt)
	fmt.Fprintf(&b, "CRITICAL: You must generate EXACTLY %d questions - no more, no less.\n\n", req.QuestionCount)
	b.WriteString("Format the response as a valid JSON object with the following structure:\n")
	b.WriteString(`{
  "questions": [
    {
      "question": "Your question here",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": 0,
      "explanation": "Brief explanation of the correct answer"
    }
  ]
}`)
	b.WriteString("\n\nSTRICT Requirements:\n")
	fmt.Fprintf(&b, "- Generate EXACTLY %d questions (count them before responding)\n", req.QuestionCount)
	b.WriteString("- Each question must have exactly 4 options\n")
	b.WriteString("- correctAnswer must be the index (0, 1, 2, or 3) of the correct option\n")
	b.WriteString("- Questions should be educational and cover different aspects of the topic\n")
	b.WriteString("- Return ONLY the JSON object, no additional text\n")
	fmt.Fprintf(&b, "- Double-check that your questions array has exactly %d items\n\n", req.QuestionCount)
	writeGuidelines(&b, req.Difficulty)

	return b.String()
}

func writeGuidelines(b *strings.Builder, d Difficulty) {
	fmt.Fprintf(b, "Difficulty-specific guidelines for %s level:\n", strings.ToUpper(string(d)))
	for _, g := range difficultyGuidelines[d] {
		fmt.Fprintf(b, "- %s\n", g)
	}
}
