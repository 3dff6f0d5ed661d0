package utils // package utils provides helpers for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong iss/aud.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload of an access token. The subject carries the user id
// as a decimal string; UserID and Role are duplicated as typed claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"uid"`
	Role   string `json:"role"`
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// TokenSigner issues and verifies HS256 access tokens for one issuer and
// audience.
type TokenSigner struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	now      func() time.Time
}

// NewTokenSigner returns a signer using the given secret and claims.
func NewTokenSigner(secret, issuer, audience string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{Secret: []byte(secret), Issuer: issuer, Audience: audience, TTL: ttl, now: time.Now}
}

// Issue builds and signs an access token for a user. It carries no email or
// other profile data.
func (s *TokenSigner) Issue(userID uint64, role string) (AccessToken, error) {
	now := s.now().UTC()
	exp := now.Add(s.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    s.Issuer,
			Audience:  jwt.ClaimStrings{s.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Role:   role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Parse verifies raw and returns its claims. Expired tokens yield
// ErrTokenExpired so callers can tell them apart from forged or malformed ones.
func (s *TokenSigner) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.Secret, nil
	},
		jwt.WithIssuer(s.Issuer),
		jwt.WithAudience(s.Audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid || claims.UserID == 0 || claims.Subject != strconv.FormatUint(claims.UserID, 10) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
