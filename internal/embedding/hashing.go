// Package embedding provides embedders that do not depend on a model provider,
// plus a rate limiting wrapper for any domain.Embedder.
package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/utils"
)

// DefaultDimension is used when NewHashing is given a non-positive size.
const DefaultDimension = 256

var _ domain.Embedder = (*Hashing)(nil)

// Hashing is a deterministic bag-of-words embedder based on the hashing
// trick. It needs no vocabulary and no network, which makes it usable for
// local development and tests. Vectors are unit length.
type Hashing struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Hashing{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
		stopwords:    defaultStopwords(),
	}
}

func (h *Hashing) Dimension() int { return h.dimension }

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dimension)
	for _, tok := range h.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := h.stopwords[tok]; stop {
			continue
		}
		hasher := fnv.New32a()
		hasher.Write([]byte(tok))
		sum := hasher.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(h.dimension))] += sign
	}
	return utils.Normalize(vec), nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "do", "does", "for", "from", "how", "i",
		"in", "is", "it", "me", "my", "of", "on", "or", "the", "to", "what", "with", "you", "your",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
