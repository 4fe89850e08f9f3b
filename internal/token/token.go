// Package token issues and verifies the two credential kinds the API
// accepts: full user session tokens and response-scoped tokens handed to
// (possibly anonymous) respondents. The two kinds are never
// interchangeable; callers discriminate on the decoded payload.
package token

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	KindUser     = "user"
	KindResponse = "response"
)

// ErrInvalidToken covers every verification failure: malformed, expired,
// mis-signed. Callers map it to an authorization failure, never to a 5xx.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the discriminated token payload. Kind selects which of the
// remaining fields are meaningful: Subject for user tokens, SurveyID and
// ResponseID for response tokens.
type Claims struct {
	Kind       string `json:"kind"`
	SurveyID   string `json:"surveyId,omitempty"`
	ResponseID string `json:"responseId,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	secret      []byte
	userTTL     time.Duration
	responseTTL time.Duration
}

func NewService(secret string, userTTL, responseTTL time.Duration) *Service {
	return &Service{
		secret:      []byte(secret),
		userTTL:     userTTL,
		responseTTL: responseTTL,
	}
}

// IssueUserToken signs a session token for a registered user.
func (s *Service) IssueUserToken(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: KindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.userTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IssueResponseToken signs a short-lived token bound to exactly one
// (survey, response) pair. It is minted once per prepare call and is not
// renewable.
func (s *Service) IssueResponseToken(surveyID, responseID string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind:       KindResponse,
		SurveyID:   surveyID,
		ResponseID: responseID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.responseTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry only; kind discrimination is the
// caller's job.
func (s *Service) Verify(tok string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tok, &Claims{},
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsUserToken reports whether the payload is a user session token.
func IsUserToken(c *Claims) bool {
	return c != nil && c.Kind == KindUser
}

// IsResponseToken reports whether the payload is a response-scoped token.
func IsResponseToken(c *Claims) bool {
	return c != nil && c.Kind == KindResponse
}
