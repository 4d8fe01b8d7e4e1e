package protocol

import (
	"strings"
	"testing"
)

func TestChatRequestValidate(t *testing.T) {
	if err := (ChatRequest{Message: "hi"}).Validate(); err != nil {
		t.Fatalf("valid request error = %v", err)
	}
	if err := (ChatRequest{Message: "  "}).Validate(); err == nil {
		t.Fatalf("blank message should fail validation")
	}
	if err := (ChatRequest{Message: strings.Repeat("x", MaxChatMessageLen+1)}).Validate(); err == nil {
		t.Fatalf("oversized message should fail validation")
	}
}

func TestTTSRequestValidate(t *testing.T) {
	if err := (TTSRequest{Text: "speak this"}).Validate(); err != nil {
		t.Fatalf("valid request error = %v", err)
	}
	if err := (TTSRequest{}).Validate(); err == nil {
		t.Fatalf("empty text should fail validation")
	}
	if err := (TTSRequest{Text: strings.Repeat("x", MaxTTSTextLen+1)}).Validate(); err == nil {
		t.Fatalf("oversized text should fail validation")
	}
}
