package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/store"
)

// Degraded-mode reasons surfaced in result metadata.
const (
	DegradedEmbeddingUnavailable = "embedding_unavailable"
	DegradedVectorSearchFailed   = "vector_search_failed"
	DegradedTextSearchFailed     = "text_search_failed"
)

// SelectSeeds fuses vector and text search into the initial candidate set.
// Both searches run concurrently; a single failing method degrades the result
// instead of failing it, only both methods failing is an error.
func (p *Pipeline) SelectSeeds(ctx context.Context, prompt string) (*SeedResult, error) {
	result := &SeedResult{
		TextScores: map[int64]float32{},
	}

	promptVector, err := p.embedder.Embed(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
			return nil, fmt.Errorf("embed prompt: %w", err)
		}
		result.Degraded = true
		result.DegradedReason = DegradedEmbeddingUnavailable
	}
	result.PromptVector = promptVector

	type vectorResult struct {
		hits []*store.DocumentWithScore
		err  error
	}
	type textResult struct {
		hits []*store.FTSResult
		err  error
	}

	vectorCh := make(chan vectorResult, 1)
	textCh := make(chan textResult, 1)

	if promptVector != nil {
		go func() {
			hits, err := p.store.VectorSearch(ctx, &store.VectorSearchOptions{
				Vector: promptVector,
				Limit:  p.cfg.Seed.PerMethodK,
				Kind:   store.EmbeddingKindBody,
			})
			vectorCh <- vectorResult{hits: hits, err: err}
		}()
	} else {
		vectorCh <- vectorResult{}
	}

	go func() {
		hits, err := p.store.FTSSearch(ctx, &store.FTSSearchOptions{
			Query: SanitizeQuery(prompt),
			Limit: p.cfg.Seed.PerMethodK,
		})
		textCh <- textResult{hits: hits, err: err}
	}()

	vec := <-vectorCh
	text := <-textCh

	if vec.err != nil && text.err != nil {
		return nil, fmt.Errorf("both search methods failed: vector: %v, text: %w", vec.err, text.err)
	}
	if vec.err != nil {
		result.Degraded = true
		result.DegradedReason = DegradedVectorSearchFailed
		vec.hits = nil
	}
	if text.err != nil {
		result.Degraded = true
		result.DegradedReason = DegradedTextSearchFailed
		text.hits = nil
	}

	vectorIDs := make([]int64, 0, len(vec.hits))
	for _, hit := range vec.hits {
		vectorIDs = append(vectorIDs, hit.Document.ID)
	}
	textIDs := make([]int64, 0, len(text.hits))
	for _, hit := range text.hits {
		textIDs = append(textIDs, hit.Document.ID)
		result.TextScores[hit.Document.ID] = hit.Score
	}

	result.Candidates = FuseRRF(vectorIDs, textIDs, p.cfg.Seed)
	return result, nil
}

// FuseRRF combines two ranked doc id lists by reciprocal rank fusion. A doc
// absent from one list simply gets no contribution from it. The top SeedCount
// candidates are returned, sorted by fused score descending with ties broken
// by smaller doc id.
func FuseRRF(vectorIDs, textIDs []int64, cfg ai.SeedConfig) []Candidate {
	scores := make(map[int64]float64)
	for i, id := range vectorIDs {
		scores[id] += cfg.WeightVec / (cfg.RRFK + float64(i+1))
	}
	for i, id := range textIDs {
		scores[id] += cfg.WeightFTS / (cfg.RRFK + float64(i+1))
	}

	candidates := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		if score == 0 {
			continue
		}
		candidates = append(candidates, Candidate{DocID: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DocID < candidates[j].DocID
	})

	if len(candidates) > cfg.SeedCount {
		candidates = candidates[:cfg.SeedCount]
	}
	return candidates
}

// SanitizeQuery turns a free-form prompt into a safe full-text query: FTS
// operators are stripped, only alphanumeric terms of length >= 3 survive, and
// each term is quoted. When nothing survives, the whole prompt is quoted as a
// single phrase.
func SanitizeQuery(prompt string) string {
	terms := strings.FieldsFunc(prompt, func(r rune) bool {
		return !isQueryRune(r)
	})

	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if len([]rune(term)) < 3 {
			continue
		}
		quoted = append(quoted, `"`+term+`"`)
	}
	if len(quoted) == 0 {
		safe := strings.Map(func(r rune) rune {
			if isQueryRune(r) || r == ' ' {
				return r
			}
			return ' '
		}, prompt)
		return `"` + strings.Join(strings.Fields(safe), " ") + `"`
	}
	return strings.Join(quoted, " OR ")
}

func isQueryRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127
}
