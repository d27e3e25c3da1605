package auth

import (
	"strings"
	"testing"
	"time"
)

func TestMaskUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "alice", want: "ali**"},
		{in: "admin", want: "adm**"},
		{in: "bob", want: "***"},
		{in: "ab", want: "***"},
		{in: "", want: "***"},
		{in: "abcd", want: "abc*"},
		{in: "jürgen", want: "jür***"},
	}
	for _, tt := range tests {
		if got := MaskUsername(tt.in); got != tt.want {
			t.Errorf("MaskUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "192.168.1.100", want: "192.168.x.x"},
		{in: "10.0.0.1:54321", want: "10.0.x.x"},
		{in: "::ffff:172.16.5.4", want: "172.16.x.x"},
		{in: "2001:db8::1", want: "2001:0db8:0000:0000:x:x:x:x"},
		{in: "[2001:db8:1:2::5]:443", want: "2001:0db8:0001:0002:x:x:x:x"},
		{in: "", want: "x.x.x.x"},
		{in: "not-an-ip", want: "x.x.x.x"},
		{in: "999.1.1.1", want: "x.x.x.x"},
	}
	for _, tt := range tests {
		if got := MaskAddress(tt.in); got != tt.want {
			t.Errorf("MaskAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateUserAgent(t *testing.T) {
	short := "Mozilla/5.0"
	if got := truncateUserAgent(short); got != short {
		t.Errorf("truncateUserAgent(short) = %q", got)
	}

	long := strings.Repeat("a", 250)
	if got := truncateUserAgent(long); len(got) != maxUserAgentLen {
		t.Errorf("len(truncateUserAgent(long)) = %d, want %d", len(got), maxUserAgentLen)
	}

	// A multibyte rune straddling the limit is dropped whole.
	multi := strings.Repeat("a", 199) + "é" + "tail"
	got := truncateUserAgent(multi)
	if got != strings.Repeat("a", 199) {
		t.Errorf("truncateUserAgent(multi) kept a partial rune: %q", got[190:])
	}
}

func TestNewAttemptRecord(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	meta := AttemptMeta{SourceAddress: "203.0.113.9:1234", UserAgent: "curl/8.0"}

	failed := NewAttemptRecord("alice", meta, false, "invalid_credentials", at)
	if failed.MaskedUsername != "ali**" {
		t.Errorf("MaskedUsername = %q", failed.MaskedUsername)
	}
	if failed.MaskedSourceAddress != "203.0.x.x" {
		t.Errorf("MaskedSourceAddress = %q", failed.MaskedSourceAddress)
	}
	if failed.UserAgent != "curl/8.0" {
		t.Errorf("UserAgent = %q", failed.UserAgent)
	}
	if failed.Succeeded || failed.FailureReason != "invalid_credentials" {
		t.Errorf("failed record = %+v", failed)
	}
	if failed.Timestamp.Location() != time.UTC || !failed.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v in UTC", failed.Timestamp, at)
	}

	ok := NewAttemptRecord("alice", meta, true, "ignored", at)
	if !ok.Succeeded || ok.FailureReason != "" {
		t.Errorf("successful record = %+v, want empty reason", ok)
	}
	if strings.Contains(ok.MaskedUsername, "alice") || strings.Contains(ok.MaskedSourceAddress, "113.9") {
		t.Errorf("record leaks raw identifiers: %+v", ok)
	}
}
