package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.5,-1,0.125]", VectorLiteral([]float32{0.5, -1, 0.125}))
	assert.Equal(t, "[1e-07]", VectorLiteral([]float32{1e-7}))
}

func TestCleanText(t *testing.T) {
	in := "line1\nline2\ttab\r\x00nul\x1besc\x7fdel\u2028ls\u2029ps"
	want := "line1\nline2\ttab\r nul esc del ls ps"
	assert.Equal(t, want, CleanText(in))
	assert.Equal(t, "plain ünïcode", CleanText("plain ünïcode"))
}
