package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

// RFC 6238 appendix B secret for SHA1.
var rfcSecret = []byte("12345678901234567890")

func TestTOTPEngine_CurrentCode_RFC6238Vectors(t *testing.T) {
	engine := DefaultTOTPEngine()

	tests := []struct {
		unix int64
		want string
	}{
		{unix: 59, want: "287082"},
		{unix: 1111111109, want: "081804"},
		{unix: 1111111111, want: "050471"},
		{unix: 1234567890, want: "005924"},
		{unix: 2000000000, want: "279037"},
		{unix: 20000000000, want: "353130"},
	}

	for _, tt := range tests {
		got, err := engine.CurrentCode(rfcSecret, time.Unix(tt.unix, 0).UTC())
		if err != nil {
			t.Fatalf("CurrentCode(%d) error = %v", tt.unix, err)
		}
		if got != tt.want {
			t.Errorf("CurrentCode(%d) = %s, want %s", tt.unix, got, tt.want)
		}
	}
}

func TestTOTPEngine_CurrentCode_EmptySecret(t *testing.T) {
	if _, err := DefaultTOTPEngine().CurrentCode(nil, time.Now()); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestTOTPEngine_VerifyRoundTrip(t *testing.T) {
	engine := DefaultTOTPEngine()

	for i := 0; i < 50; i++ {
		secret, err := GenerateSecret(nil, MinSecretLength)
		if err != nil {
			t.Fatal(err)
		}
		now := time.Unix(1700000000+int64(i)*7919, 0)

		code, err := engine.CurrentCode(secret, now)
		if err != nil {
			t.Fatalf("CurrentCode() error = %v", err)
		}
		if !engine.Verify(secret, code, now) {
			t.Fatalf("Verify(CurrentCode(S, T), T) = false at %v", now)
		}
	}
}

func TestTOTPEngine_VerifyWindow(t *testing.T) {
	engine := DefaultTOTPEngine()
	// Start of a step so that ±30s lands exactly on neighbouring steps.
	ref := time.Unix(1700000010, 0)
	code, err := engine.CurrentCode(rfcSecret, ref)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{name: "same instant", offset: 0, want: true},
		{name: "verifier 30s ahead", offset: 30 * time.Second, want: true},
		{name: "verifier 30s behind", offset: -30 * time.Second, want: true},
		{name: "verifier two steps ahead", offset: 60 * time.Second, want: false},
		{name: "verifier two steps behind", offset: -60 * time.Second, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Verify(rfcSecret, code, ref.Add(tt.offset)); got != tt.want {
				t.Errorf("Verify() at offset %v = %v, want %v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestTOTPEngine_VerifyNoSkew(t *testing.T) {
	engine := NewTOTPEngine(TOTPConfig{Period: 30, Skew: 0})
	ref := time.Unix(1700000010, 0)
	code, _ := engine.CurrentCode(rfcSecret, ref)

	if !engine.Verify(rfcSecret, code, ref) {
		t.Error("code should verify in its own step")
	}
	if engine.Verify(rfcSecret, code, ref.Add(30*time.Second)) {
		t.Error("code should not verify in the next step without skew")
	}
}

func TestTOTPEngine_ZeroConfig(t *testing.T) {
	engine := NewTOTPEngine(TOTPConfig{})
	ref := time.Unix(1700000010, 0)
	code, _ := engine.CurrentCode(rfcSecret, ref)

	if !engine.Verify(rfcSecret, code, ref.Add(15*time.Second)) {
		t.Error("code should verify within its 30 second step")
	}
	for _, offset := range []time.Duration{-30 * time.Second, 30 * time.Second} {
		if engine.Verify(rfcSecret, code, ref.Add(offset)) {
			t.Errorf("zero config accepted a code at offset %v", offset)
		}
	}
	if !DefaultTOTPEngine().Verify(rfcSecret, code, ref.Add(30*time.Second)) {
		t.Error("default engine should accept the adjacent step")
	}
}

func TestTOTPEngine_VerifyMalformedInput(t *testing.T) {
	engine := DefaultTOTPEngine()
	now := time.Now()
	valid, _ := engine.CurrentCode(rfcSecret, now)

	tests := []struct {
		name   string
		secret []byte
		code   string
	}{
		{name: "empty code", secret: rfcSecret, code: ""},
		{name: "five digits", secret: rfcSecret, code: valid[:5]},
		{name: "seven digits", secret: rfcSecret, code: valid + "0"},
		{name: "letters", secret: rfcSecret, code: "abcdef"},
		{name: "spaces", secret: rfcSecret, code: "123 45"},
		{name: "unicode digits", secret: rfcSecret, code: "１２３４５６"},
		{name: "empty secret", secret: nil, code: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if engine.Verify(tt.secret, tt.code, now) {
				t.Errorf("Verify(%q) = true, want false", tt.code)
			}
		})
	}
}

func TestTOTPEngine_VerifyWrongSecret(t *testing.T) {
	engine := DefaultTOTPEngine()
	now := time.Unix(1700000010, 0)
	code, _ := engine.CurrentCode(rfcSecret, now)

	other := []byte("09876543210987654321")
	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		if c, _ := engine.CurrentCode(other, now.Add(offset)); c == code {
			t.Skip("codes collide for this secret pair")
		}
	}
	if engine.Verify(other, code, now) {
		t.Error("code from one secret verified against another")
	}
}

func TestTOTPEngine_InteroperatesWithAuthenticatorLibrary(t *testing.T) {
	engine := DefaultTOTPEngine()
	now := time.Now()

	code, err := totp.GenerateCode(EncodeSecret(rfcSecret), now)
	if err != nil {
		t.Fatal(err)
	}
	if !engine.Verify(rfcSecret, code, now) {
		t.Error("code generated by the reference library was rejected")
	}
}

func TestIsWellFormedCode(t *testing.T) {
	tests := map[string]bool{
		"123456":  true,
		"000000":  true,
		"12345":   false,
		"1234567": false,
		"12345a":  false,
		"":        false,
		"-12345":  false,
	}
	for code, want := range tests {
		if got := IsWellFormedCode(code); got != want {
			t.Errorf("IsWellFormedCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("alice@example.com", "Secure Login", rfcSecret)

	wantPrefix := "otpauth://totp/Secure%20Login:alice%40example.com?"
	if !strings.HasPrefix(uri, wantPrefix) {
		t.Errorf("ProvisioningURI() = %s, want prefix %s", uri, wantPrefix)
	}

	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Errorf("scheme/host = %s/%s, want otpauth/totp", u.Scheme, u.Host)
	}
	q := u.Query()
	if got := q.Get("secret"); got != EncodeSecret(rfcSecret) {
		t.Errorf("secret = %s, want %s", got, EncodeSecret(rfcSecret))
	}
	if got := q.Get("issuer"); got != "Secure Login" {
		t.Errorf("issuer = %q, want %q", got, "Secure Login")
	}
}
