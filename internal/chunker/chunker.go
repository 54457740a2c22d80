// Package chunker splits document text into overlapping fixed-size passages.
// Sizes are measured in Unicode code points.
package chunker

import (
	"fmt"

	"gwi.com/support-chatbot/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Split advances a window of size runes over text with stride size-overlap.
// The last chunk is the tail of the text and may be shorter than size.
// Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrInvalidInput, size, overlap)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}, nil
	}

	stride := size - overlap
	chunks := make([]string, 0, Count(len(runes), size, overlap))
	for start := 0; ; start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Count is the number of chunks Split produces for a text of length runes.
func Count(length, size, overlap int) int {
	if length <= 0 {
		return 0
	}
	if length <= size {
		return 1
	}
	stride := size - overlap
	return (length - overlap + stride - 1) / stride
}
