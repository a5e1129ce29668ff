package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultTokenTTL is how long issued access tokens stay valid unless
// configured otherwise.
const DefaultTokenTTL = 24 * time.Hour

// ErrTokenInvalid is the single verification failure outcome. Malformed
// structure, signature mismatch, bad payload and expiry all collapse into it
// so the transport layer cannot leak which check failed.
var ErrTokenInvalid = errors.New("invalid token")

// TokenPayload is what a verified access token asserts.
type TokenPayload struct {
	UserID string
	Exp    int64
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Exp    int64  `json:"exp"`
}

// Valid implements jwt.Claims. The user id must be a well-formed identifier
// and the expiry must not be in the past.
func (c *tokenClaims) Valid() error {
	if _, err := uuid.Parse(c.UserID); err != nil {
		return errors.New("malformed user id")
	}
	if c.Exp < time.Now().Unix() {
		return errors.New("token expired")
	}
	return nil
}

// Auth issues and verifies access tokens. Locally issued tokens are HS256
// with a process-wide secret; when a JWKS is configured, RS256 tokens from
// the external identity provider are accepted as well.
type Auth struct {
	secret []byte
	ttl    time.Duration

	jwks     *keyfunc.JWKS
	audience string
	issuer   string

	local  *jwt.Parser
	remote *jwt.Parser
}

// NewAuth creates an Auth signing with the given secret. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Auth{
		secret: []byte(secret),
		ttl:    ttl,
		local:  jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// EnableJWKS additionally accepts RS256 tokens signed by the identity
// provider behind the given JWKS.
func (a *Auth) EnableJWKS(jwks *keyfunc.JWKS, audience, issuer string) {
	a.jwks = jwks
	a.audience = audience
	a.issuer = issuer
	a.remote = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
}

// Issue creates a signed access token for the user, expiring after the
// configured TTL.
func (a *Auth) Issue(userID string) (string, error) {
	claims := &tokenClaims{
		UserID: userID,
		Exp:    time.Now().Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns its payload. Every failure path
// returns ErrTokenInvalid; the concrete reason only reaches debug logs.
func (a *Auth) Verify(token string) (TokenPayload, error) {
	if strings.Count(token, ".") != 2 {
		log.Debug("token rejected: not three segments")
		return TokenPayload{}, ErrTokenInvalid
	}

	claims := &tokenClaims{}
	_, err := a.local.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err == nil {
		return TokenPayload{UserID: claims.UserID, Exp: claims.Exp}, nil
	}

	if a.jwks == nil {
		log.Debugf("token rejected: %v", err)
		return TokenPayload{}, ErrTokenInvalid
	}

	payload, remoteErr := a.verifyRemote(token)
	if remoteErr != nil {
		log.Debugf("token rejected: local: %v, jwks: %v", err, remoteErr)
		return TokenPayload{}, ErrTokenInvalid
	}
	return payload, nil
}

func (a *Auth) verifyRemote(token string) (TokenPayload, error) {
	parsed, err := a.remote.Parse(token, a.jwks.Keyfunc)
	if err != nil {
		return TokenPayload{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return TokenPayload{}, errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return TokenPayload{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return TokenPayload{}, errors.New("token not valid yet")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, false) {
		return TokenPayload{}, errors.New("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, false) {
		return TokenPayload{}, errors.New("invalid issuer")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return TokenPayload{}, errors.New("missing sub")
	}

	exp, _ := claims["exp"].(float64)
	return TokenPayload{UserID: sub, Exp: int64(exp)}, nil
}
