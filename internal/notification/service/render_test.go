package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]string
		want    string
		missing []string
	}{
		{
			name:    "spacing variants",
			content: "{{user_name}}님 {{ room_name }} {{  amount  }}원",
			vars:    map[string]string{"user_name": "김이룸", "room_name": "301", "amount": "450,000"},
			want:    "김이룸님 301 450,000원",
		},
		{
			name:    "missing kept verbatim and deduplicated",
			content: "{{ due_date }} {{ amount }} {{ due_date }}",
			vars:    map[string]string{"amount": "1"},
			want:    "{{ due_date }} 1 {{ due_date }}",
			missing: []string{"due_date"},
		},
		{
			name:    "no placeholders",
			content: "안내드립니다",
			want:    "안내드립니다",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing := Render(tt.content, tt.vars)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"user_name", "amount"}, Placeholders("{{ user_name }} {{amount}} {{ user_name }}"))
	assert.Empty(t, Placeholders("plain"))
}

func TestDedupKey(t *testing.T) {
	key := DedupKey("PAYMENT_REMINDER", 42, date(2025, 9, 4))
	assert.Equal(t, "PAYMENT_REMINDER:42:2025-09-04", key)
}
