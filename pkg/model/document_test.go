package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTableID(t *testing.T) {
	assert.True(t, CheckTableID("tasks"))
	assert.True(t, CheckTableID("work-time_2"))
	assert.False(t, CheckTableID(""))
	assert.False(t, CheckTableID("with space"))
	assert.False(t, CheckTableID("a.b"))
}

func TestDocument_Lookup(t *testing.T) {
	doc := Document{
		"id":    float64(12),
		"title": "Fix printer",
		"assignee": map[string]interface{}{
			"user": map[string]interface{}{"id": float64(5)},
		},
		"due": nil,
	}

	t.Run("top level", func(t *testing.T) {
		s, ok := doc.Lookup("title").Str()
		assert.True(t, ok)
		assert.Equal(t, "Fix printer", s)
	})

	t.Run("nested", func(t *testing.T) {
		n, ok := doc.Lookup("assignee.user.id").Num()
		assert.True(t, ok)
		assert.Equal(t, float64(5), n)
	})

	t.Run("explicit null", func(t *testing.T) {
		assert.Equal(t, KindNull, doc.Lookup("due").Kind())
	})

	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, KindUndefined, doc.Lookup("missing").Kind())
		assert.Equal(t, KindUndefined, doc.Lookup("title.sub").Kind())
	})

	t.Run("nil document", func(t *testing.T) {
		var empty Document
		assert.Equal(t, KindUndefined, empty.Lookup("id").Kind())
	})

	assert.Equal(t, "12", doc.GetID())
	assert.True(t, doc.HasKey("due"))
	assert.False(t, doc.HasKey("nope"))
}
