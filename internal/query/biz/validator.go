package biz

import (
	"strings"

	"github.com/kart-io/bookqa/internal/model"
)

// minQuestionLen is the minimum accepted question length in runes.
const minQuestionLen = 3

// ValidationError describes one violated request rule.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidateRequest checks every rule and reports all violations at once,
// so a client can fix its request in a single round trip.
func ValidateRequest(req *model.QueryRequest) []ValidationError {
	var errs []ValidationError

	if len([]rune(strings.TrimSpace(req.Question))) < minQuestionLen {
		errs = append(errs, ValidationError{
			Field:   "question",
			Message: "Question must be at least 3 characters long",
		})
	}

	if req.Mode != model.ModeBookWide && req.Mode != model.ModeSelectedText {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: "Query mode must be either 'book-wide' or 'selected-text'",
		})
	}

	if req.Mode == model.ModeSelectedText && strings.TrimSpace(req.SelectedText) == "" {
		errs = append(errs, ValidationError{
			Field:   "selected_text",
			Message: "Selected text must be provided when query mode is 'selected-text'",
		})
	}

	return errs
}
