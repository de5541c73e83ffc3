package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityDefinition_WithFields(t *testing.T) {
	def := EntityDefinition{
		Name:        "Course",
		StorageName: "courses",
		Fields: []FieldDefinition{
			{Name: "id"}, {Name: "title"}, {Name: "price"},
		},
	}

	t.Run("empty selection keeps all", func(t *testing.T) {
		got, unknown := def.WithFields(nil)
		assert.Equal(t, []string{"id", "title", "price"}, got.FieldNames())
		assert.Empty(t, unknown)
	})

	t.Run("declaration order kept", func(t *testing.T) {
		got, unknown := def.WithFields([]string{"price", "id"})
		assert.Equal(t, []string{"id", "price"}, got.FieldNames())
		assert.Equal(t, "courses", got.StorageName)
		assert.Empty(t, unknown)
	})

	t.Run("unknown names reported", func(t *testing.T) {
		got, unknown := def.WithFields([]string{"title", "rating"})
		assert.Equal(t, []string{"title"}, got.FieldNames())
		assert.Equal(t, []string{"rating"}, unknown)
	})

	t.Run("copy does not alias", func(t *testing.T) {
		got, _ := def.WithFields(nil)
		got.Fields[0].Name = "changed"
		assert.Equal(t, "id", def.Fields[0].Name)
	})
}

func TestEntityDefinition_Field(t *testing.T) {
	def := EntityDefinition{Fields: []FieldDefinition{{Name: "id", PrimaryKey: true}}}

	f, ok := def.Field("id")
	assert.True(t, ok)
	assert.True(t, f.PrimaryKey)

	_, ok = def.Field("missing")
	assert.False(t, ok)
}
