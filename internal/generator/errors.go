package generator

import "errors"

var (
	// ErrTranscriptUnavailable means the video has no caption track to read,
	// either because captions are disabled or none exist in the language.
	ErrTranscriptUnavailable = errors.New("generator: transcript unavailable")
	// ErrEmptyTranscript means the video has captions but no text in them.
	ErrEmptyTranscript = errors.New("generator: transcript is empty")
	// ErrMalformedArticle means the model's reply was not a usable
	// {"title", "content"} object.
	ErrMalformedArticle = errors.New("generator: malformed article")
)
