package domain

import (
	"golang.org/x/text/encoding/korean"
)

type MessageType string

const (
	MessageTypeSMS MessageType = "SMS"
	MessageTypeLMS MessageType = "LMS"
)

// SMSByteLimit is the largest EUC-KR body a short message carries.
const SMSByteLimit = 90

// MeasureContent returns the EUC-KR byte length the gateway bills and the
// message type it implies. Characters outside EUC-KR fall back to UTF-8 length.
func MeasureContent(content string) (int, MessageType) {
	size := len(content)
	if encoded, err := korean.EUCKR.NewEncoder().String(content); err == nil {
		size = len(encoded)
	}
	if size > SMSByteLimit {
		return size, MessageTypeLMS
	}
	return size, MessageTypeSMS
}
