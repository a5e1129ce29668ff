package api

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const b64urlAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// flipChar replaces the base64url character at position i with one that
// differs in a high payload bit, so the decoded bytes always change even at
// the final, partially-used character.
func flipChar(segment string, i int) string {
	idx := strings.IndexByte(b64urlAlphabet, segment[i])
	if idx < 0 {
		return segment[:i] + "A" + segment[i+1:]
	}
	return segment[:i] + string(b64urlAlphabet[idx^16]) + segment[i+1:]
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	userID := uuid.NewString()

	token, err := auth.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected three token segments, got %q", token)
	}

	payload, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payload.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, payload.UserID)
	}
	now := time.Now().Unix()
	if payload.Exp < now || payload.Exp > now+int64(time.Hour/time.Second) {
		t.Fatalf("expiry outside the TTL window: %d", payload.Exp)
	}
}

func TestVerifyRejectsEverySignatureFlip(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	token, err := auth.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")

	for i := 0; i < len(parts[2]); i++ {
		tampered := parts[0] + "." + parts[1] + "." + flipChar(parts[2], i)
		if _, err := auth.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for flip at %d, got %v", i, err)
		}
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	token, err := auth.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")

	tampered := parts[0] + "." + flipChar(parts[1], 4) + "." + parts[2]
	if _, err := auth.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	claims := &tokenClaims{
		UserID: uuid.NewString(),
		Exp:    time.Now().Add(-time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestVerifyRejectsMalformedUserID(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	claims := &tokenClaims{
		UserID: "not-an-identifier",
		Exp:    time.Now().Add(time.Hour).Unix(),
	}
	// Sign without claim validation; Verify must reject on its own.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for malformed user id, got %v", err)
	}
}

func TestVerifyRejectsWrongSegmentCount(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	testCases := map[string]string{
		"empty":         "",
		"one_segment":   "abc",
		"two_segments":  "abc.def",
		"four_segments": "a.b.c.d",
	}
	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.Verify(token); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsForeignSigningMethod(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	claims := &tokenClaims{
		UserID: uuid.NewString(),
		Exp:    time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for HS384 token, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	other := NewAuth("other-secret", time.Hour)
	token, err := other.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	auth := NewAuth("test-secret", time.Hour)
	if _, err := auth.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign secret, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	testCases := map[string]struct {
		header  string
		want    string
		wantErr error
	}{
		"valid":            {header: "Bearer a.b.c", want: "a.b.c"},
		"missing":          {header: "", wantErr: errMissingAuthorization},
		"no_scheme":        {header: "a.b.c", wantErr: errBadAuthorization},
		"lowercase_scheme": {header: "bearer a.b.c", wantErr: errBadAuthorization},
		"empty_token":      {header: "Bearer ", wantErr: errBadAuthorization},
		"not_a_jwt":        {header: "Bearer abc", wantErr: errBadAuthorization},
		"too_many_dots":    {header: "Bearer " + strings.Repeat(".", 100), wantErr: errBadAuthorization},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := bearerToken(tc.header)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected token %q, got %q", tc.want, got)
			}
		})
	}
}
