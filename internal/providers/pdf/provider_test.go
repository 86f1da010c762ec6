package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminationNotice_RendersPDF(t *testing.T) {
	p := New("")
	out, err := p.TerminationNotice(context.Background(), NoticeData{
		ContractNumber: "1790000000000",
		Branch:         "Gangnam",
		RoomName:       "301",
		TenantName:     "Kim",
		Period:         "2025-03-01 ~ 2026-03-01",
		RequestedOn:    "2025-09-01",
		EffectiveOn:    "2025-10-01",
		Remaining:      "6",
		Penalty:        "450,000",
		Status:         "PENDING",
		Statement:      "line one\nline two",
		IssuedOn:       "2025-09-02",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTerminationNotice_MissingFont(t *testing.T) {
	p := New("/nonexistent/font.ttf")
	_, err := p.TerminationNotice(context.Background(), NoticeData{})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "termination-notice-42-gangnam-301.pdf", FileName(NoticeData{ContractNumber: "42", Branch: "Gangnam", RoomName: "301"}))
	assert.Equal(t, "termination-notice-42.pdf", FileName(NoticeData{ContractNumber: "42"}))
}
