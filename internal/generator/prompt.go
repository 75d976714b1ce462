package generator

import (
	"fmt"
	"unicode/utf8"
)

// MaxTranscriptRunes bounds how much transcript is sent to the model.
const MaxTranscriptRunes = 8000

// SystemPrompt frames the model as a blog writer that answers in JSON.
const SystemPrompt = "You are a professional blog writer. Write an original, well structured " +
	"blog post and reply with a JSON object that has exactly two string fields, " +
	"\"title\" and \"content\". Every answer should read differently, even for the " +
	"same input. Be thorough and detailed."

// UserPrompt builds the instruction message for one video.
func UserPrompt(videoTitle, transcript string) string {
	return fmt.Sprintf(`Topic: %s

Reference content:
%s

Instructions:
1. Write an original, comprehensive blog post
2. Format the content as markdown
3. Explain ideas in detail
4. Include relevant examples
5. Organise it into several sections with subheadings
6. Finish with a thorough conclusion
7. Make this version different from any earlier one

Reply format:
{"title": "A Distinct Title", "content": "# Heading\n\nBody"}`, videoTitle, TruncateRunes(transcript, MaxTranscriptRunes))
}

// TruncateRunes returns at most n runes of s without splitting a character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
