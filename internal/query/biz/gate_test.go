package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/bookqa/internal/model"
)

func TestCheckQuery(t *testing.T) {
	var gate GroundingGate

	assert.False(t, gate.CheckQuery("What happens in chapter 3?").Refused())

	d := gate.CheckQuery("   ")
	assert.True(t, d.Refused())
	assert.Equal(t, model.ReasonNoRelevantContext, d.Reason)
}

func TestCheckRetrieval(t *testing.T) {
	var gate GroundingGate

	t.Run("empty passage set refuses", func(t *testing.T) {
		d := gate.CheckRetrieval(nil)
		assert.True(t, d.Refused())
		assert.Equal(t, model.ReasonNoRelevantContext, d.Reason)
		assert.Equal(t, "No relevant content was found in the book for this question.", d.Explanation)
	})

	t.Run("passage without source refuses with citation failure", func(t *testing.T) {
		d := gate.CheckRetrieval([]model.ContextPassage{
			{ID: "c1", DocumentID: "doc_1", Content: "text"},
			{ID: "c2", DocumentID: "  ", Content: "text"},
		})
		assert.True(t, d.Refused())
		assert.Equal(t, model.ReasonCitationFailure, d.Reason)
	})

	t.Run("grounded passages proceed", func(t *testing.T) {
		d := gate.CheckRetrieval([]model.ContextPassage{
			{ID: "c1", DocumentID: "doc_1", Content: "text"},
		})
		assert.Equal(t, GateProceed, d.State)
	})
}

func TestCheckGeneration(t *testing.T) {
	var gate GroundingGate

	t.Run("nil result refuses", func(t *testing.T) {
		d := gate.CheckGeneration(nil)
		assert.True(t, d.Refused())
		assert.Equal(t, model.ReasonNoRelevantContext, d.Reason)
	})

	t.Run("insufficient result carries its own reason", func(t *testing.T) {
		d := gate.CheckGeneration(&model.GenerationResult{
			Status:      model.StatusInsufficientContext,
			Reason:      model.ReasonCitationFailure,
			Explanation: "boom",
		})
		assert.True(t, d.Refused())
		assert.Equal(t, model.ReasonCitationFailure, d.Reason)
		assert.Equal(t, "boom", d.Explanation)
	})

	t.Run("insufficient result without reason defaults", func(t *testing.T) {
		d := gate.CheckGeneration(&model.GenerationResult{
			Status: model.StatusInsufficientContext,
		})
		assert.True(t, d.Refused())
		assert.Equal(t, model.ReasonNoRelevantContext, d.Reason)
	})

	t.Run("success proceeds", func(t *testing.T) {
		d := gate.CheckGeneration(&model.GenerationResult{
			Answer: "The theme is redemption.",
			Status: model.StatusSuccess,
		})
		assert.False(t, d.Refused())
	})
}

func TestCheckCitations(t *testing.T) {
	var gate GroundingGate

	assert.False(t, gate.CheckCitations(nil).Refused())

	d := gate.CheckCitations(&CitationError{Index: 0, Detail: "missing document id"})
	assert.True(t, d.Refused())
	assert.Equal(t, model.ReasonCitationFailure, d.Reason)
}

func TestGateIsDeterministic(t *testing.T) {
	var gate GroundingGate
	passages := []model.ContextPassage{{ID: "c1", DocumentID: "doc_1", Content: "text"}}

	first := gate.CheckRetrieval(passages)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, gate.CheckRetrieval(passages))
	}
}
