package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArticle decodes a model reply into an Article.
//
// The reply must be a JSON object whose "title" and "content" are
// non-blank strings. Anything else (prose, an array, a number where a
// string belongs) is ErrMalformedArticle; nothing is guessed or repaired.
func ParseArticle(raw string) (Article, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return Article{}, fmt.Errorf("%w: not a JSON object: %v", ErrMalformedArticle, err)
	}
	if obj == nil {
		return Article{}, fmt.Errorf("%w: reply is null", ErrMalformedArticle)
	}

	title, err := stringField(obj, "title")
	if err != nil {
		return Article{}, err
	}
	content, err := stringField(obj, "content")
	if err != nil {
		return Article{}, err
	}
	return Article{Title: title, Content: content}, nil
}

func stringField(obj map[string]json.RawMessage, name string) (string, error) {
	raw, ok := obj[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedArticle, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrMalformedArticle, name)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q is blank", ErrMalformedArticle, name)
	}
	return s, nil
}
