package biz

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kart-io/bookqa/internal/model"
)

// defaultRelevance is used when a passage carries no similarity score.
const defaultRelevance = 0.75

var (
	chapterPattern = regexp.MustCompile(`(?i)(?:chapter|ch)[\s_-]*(\d+)`)
	sectionPattern = regexp.MustCompile(`(?i)(?:section|sec)[\s_-]*(\d+(?:\.\d+)?)`)
)

// CitationBuilder derives one citation per consumed passage and validates
// the batch as a whole.
type CitationBuilder struct {
	snippetMaxLen int
}

// NewCitationBuilder creates a citation builder. snippetMaxLen bounds the
// quoted snippet length in runes.
func NewCitationBuilder(snippetMaxLen int) *CitationBuilder {
	if snippetMaxLen <= 0 {
		snippetMaxLen = 200
	}
	return &CitationBuilder{snippetMaxLen: snippetMaxLen}
}

// Build derives citations for every passage, in consumption order.
// Validation is all-or-nothing: one bad passage invalidates the batch,
// because a partially cited answer cannot be trusted.
func (b *CitationBuilder) Build(responseID string, passages []model.ContextPassage) ([]model.Citation, error) {
	citations := make([]model.Citation, 0, len(passages))

	for i, p := range passages {
		if strings.TrimSpace(p.DocumentID) == "" {
			return nil, &CitationError{Index: i, DocumentID: p.DocumentID, Detail: "missing document id"}
		}
		if strings.TrimSpace(p.Content) == "" {
			return nil, &CitationError{Index: i, DocumentID: p.DocumentID, Detail: "empty passage content"}
		}

		citations = append(citations, model.Citation{
			ID:             fmt.Sprintf("cit_%s_%d", responseID, i),
			ResponseID:     responseID,
			DocumentID:     p.DocumentID,
			Chapter:        extractChapter(p.DocumentID),
			Section:        extractSection(p.DocumentID),
			SourcePath:     p.DocumentID,
			RelevanceScore: relevance(p.Score),
			TextSnippet:    b.snippet(p.Content),
		})
	}

	for i, c := range citations {
		if err := validateCitation(c); err != nil {
			return nil, &CitationError{Index: i, DocumentID: c.DocumentID, Detail: err.Error()}
		}
	}

	return citations, nil
}

// validateCitation checks a single derived citation. Chapter, section,
// source locator, and snippet must all survive trimming.
func validateCitation(c model.Citation) error {
	if c.ID == "" {
		return fmt.Errorf("missing citation id")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("missing document id")
	}
	if strings.TrimSpace(c.Chapter) == "" {
		return fmt.Errorf("missing chapter")
	}
	if strings.TrimSpace(c.Section) == "" {
		return fmt.Errorf("missing section")
	}
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("missing source path")
	}
	if strings.TrimSpace(c.TextSnippet) == "" {
		return fmt.Errorf("missing text snippet")
	}
	if math.IsNaN(c.RelevanceScore) || c.RelevanceScore < 0 || c.RelevanceScore > 1 {
		return fmt.Errorf("relevance score %f out of range", c.RelevanceScore)
	}
	return nil
}

// relevance clamps a similarity score into [0, 1], falling back to a
// fixed default when the passage was never scored. A non-finite score is
// passed through untouched; batch validation rejects it.
func relevance(score *float64) float64 {
	if score == nil {
		return defaultRelevance
	}
	s := *score
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// snippet truncates passage content to the configured snippet length.
func (b *CitationBuilder) snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= b.snippetMaxLen {
		return content
	}
	return string(runes[:b.snippetMaxLen]) + "..."
}

// extractChapter derives a human-readable chapter label from a document id.
// A chapter token wins; otherwise the leading fragments of a multi-part id
// are title-cased; otherwise a fixed default.
func extractChapter(documentID string) string {
	if m := chapterPattern.FindStringSubmatch(documentID); m != nil {
		return "Chapter " + m[1]
	}

	parts := splitIDTokens(documentID)
	if len(parts) >= 2 {
		n := 2
		if len(parts) < n {
			n = len(parts)
		}
		return titleCase(parts[:n])
	}

	return "Unknown Chapter"
}

// extractSection derives a section label from a document id.
func extractSection(documentID string) string {
	if m := sectionPattern.FindStringSubmatch(documentID); m != nil {
		return "Section " + m[1]
	}
	return "General"
}

// splitIDTokens splits a document id on the common separator characters,
// dropping empty and purely numeric tokens.
func splitIDTokens(id string) []string {
	raw := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" || isNumeric(t) {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(tokens []string) string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		lowered := strings.ToLower(t)
		out[i] = strings.ToUpper(lowered[:1]) + lowered[1:]
	}
	return strings.Join(out, " ")
}
