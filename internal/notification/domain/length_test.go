package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeasureContent(t *testing.T) {
	size, kind := MeasureContent("hello")
	assert.Equal(t, 5, size)
	assert.Equal(t, MessageTypeSMS, kind)

	size, kind = MeasureContent("안녕하세요")
	assert.Equal(t, 10, size)
	assert.Equal(t, MessageTypeSMS, kind)

	size, kind = MeasureContent(strings.Repeat("가", 46))
	assert.Equal(t, 92, size)
	assert.Equal(t, MessageTypeLMS, kind)

	size, kind = MeasureContent(strings.Repeat("a", 90))
	assert.Equal(t, 90, size)
	assert.Equal(t, MessageTypeSMS, kind)
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventMoveoutDay.Valid())
	assert.False(t, EventType("MANUAL").Valid())
	for event, vars := range VariableSchema {
		assert.Contains(t, vars, "user_name", string(event))
	}
}
