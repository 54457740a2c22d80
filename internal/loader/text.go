package loader

import (
	"context"
	"strings"
)

// TextLoader handles plain text and markdown.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load strips a UTF-8 byte order mark and replaces invalid byte sequences.
func (l *TextLoader) Load(_ context.Context, data []byte) (string, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ToValidUTF8(text, "\uFFFD")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
