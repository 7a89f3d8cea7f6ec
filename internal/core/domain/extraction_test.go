package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExtractionResult_IncludesOCR tests the nil-versus-empty distinction
func TestExtractionResult_IncludesOCR(t *testing.T) {
	without := &ExtractionResult{TypedText: "hello"}
	withEmpty := &ExtractionResult{TypedText: "hello", HandwrittenText: []string{}}
	withText := &ExtractionResult{HandwrittenText: []string{"page one"}}

	assert.False(t, without.IncludesOCR())
	assert.True(t, withEmpty.IncludesOCR())
	assert.True(t, withText.IncludesOCR())
}

// TestExtractionResult_HasHandwriting tests that blank pages do not count
func TestExtractionResult_HasHandwriting(t *testing.T) {
	blank := &ExtractionResult{HandwrittenText: []string{"", ""}}
	mixed := &ExtractionResult{HandwrittenText: []string{"", "found it"}}

	assert.False(t, blank.HasHandwriting())
	assert.True(t, mixed.HasHandwriting())
}

// TestExtractionResult_CombinedText tests joining typed text and pages
func TestExtractionResult_CombinedText(t *testing.T) {
	r := &ExtractionResult{
		TypedText:       "typed",
		HandwrittenText: []string{"page one", "", "page two"},
	}

	assert.Equal(t, "typed\n\npage one\n\npage two", r.CombinedText())

	empty := &ExtractionResult{}
	assert.Equal(t, "", empty.CombinedText())

	onlyHW := &ExtractionResult{HandwrittenText: []string{"solo"}}
	assert.Equal(t, "solo", onlyHW.CombinedText())
}
