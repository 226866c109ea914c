package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhanag29/rural-classroom/pkg"
)

var testFields = FilterFields{"course": "course_id", "lecture": "lecture_id", "_id": "id", "id": "id"}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(`{"course":"c1","lecture":{"$in":["l1","l2"]}}`, testFields)
	require.NoError(t, err)

	where, args := f.Where()
	assert.Equal(t, " WHERE course_id = ? AND lecture_id IN (?,?)", where)
	assert.Equal(t, []any{"c1", "l1", "l2"}, args)
}

func TestParseFilter_Empty(t *testing.T) {
	f, err := ParseFilter("", testFields)
	require.NoError(t, err)

	where, args := f.Where()
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestParseFilter_NumbersAndAliases(t *testing.T) {
	f, err := ParseFilter(`{"_id": 42}`, testFields)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, f["id"])
}

func TestParseFilter_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `course=c1`},
		{name: "unknown field", raw: `{"password_hash":"x"}`},
		{name: "unknown operator", raw: `{"course":{"$ne":"c1"}}`},
		{name: "nested object", raw: `{"course":{"$in":[{"a":1}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.raw, testFields)
			assert.ErrorIs(t, err, pkg.ErrBadRequest)
		})
	}
}

func TestFilter_EmptyIn(t *testing.T) {
	f, err := ParseFilter(`{"course":{"$in":[]}}`, testFields)
	require.NoError(t, err)

	where, _ := f.Where()
	assert.Equal(t, " WHERE 0", where)
}

func TestFilter_EqDoesNotMutate(t *testing.T) {
	f := Filter{"course_id": {"c1"}}
	g := f.Eq("lecture_id", "l1")

	assert.Len(t, f, 1)
	assert.Len(t, g, 2)
}
