package auth

import (
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tendant/secure-login/pkg/domain"
)

const maxUserAgentLen = 200

// AttemptMeta describes where a login attempt came from.
type AttemptMeta struct {
	SourceAddress string
	UserAgent     string
}

// MaskUsername keeps the first three characters and stars the rest.
// Example: alice -> ali**
func MaskUsername(username string) string {
	if utf8.RuneCountInString(username) <= 3 {
		return "***"
	}
	runes := []rune(username)
	return string(runes[:3]) + strings.Repeat("*", len(runes)-3)
}

// MaskAddress keeps the network half of an IP address.
// Example: 192.168.1.100 -> 192.168.x.x
// IPv6 keeps the first four groups.
func MaskAddress(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "x.x.x.x"
	}

	if v4 := ip.To4(); v4 != nil {
		parts := strings.Split(v4.String(), ".")
		return parts[0] + "." + parts[1] + ".x.x"
	}

	groups := strings.Split(expandIPv6(ip), ":")
	return strings.Join(groups[:4], ":") + ":x:x:x:x"
}

func expandIPv6(ip net.IP) string {
	var b strings.Builder
	for i := 0; i < net.IPv6len; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		const hex = "0123456789abcdef"
		b.WriteByte(hex[ip[i]>>4])
		b.WriteByte(hex[ip[i]&0x0f])
		b.WriteByte(hex[ip[i+1]>>4])
		b.WriteByte(hex[ip[i+1]&0x0f])
	}
	return b.String()
}

func truncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLen {
		return ua
	}
	ua = ua[:maxUserAgentLen]
	for !utf8.ValidString(ua) {
		ua = ua[:len(ua)-1]
	}
	return ua
}

// NewAttemptRecord builds an anonymized attempt record. Raw identifiers never
// leave this function.
func NewAttemptRecord(username string, meta AttemptMeta, succeeded bool, reason string, at time.Time) domain.AttemptRecord {
	if succeeded {
		reason = ""
	}
	return domain.AttemptRecord{
		MaskedUsername:      MaskUsername(username),
		MaskedSourceAddress: MaskAddress(meta.SourceAddress),
		UserAgent:           truncateUserAgent(meta.UserAgent),
		Succeeded:           succeeded,
		FailureReason:       reason,
		Timestamp:           at.UTC(),
	}
}
