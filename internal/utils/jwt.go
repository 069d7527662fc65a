package utils // package utils provides helpers for token issuing and key hashing

import (
    "errors"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Roles carried in the "role" claim.
const (
    RolePassenger = "PASSENGER"
    RoleOperator  = "OPERATOR"
)

// ErrEmptySubject is returned when a token would carry no subject.
var ErrEmptySubject = errors.New("token subject is empty")

// AccessToken is a signed JWT together with its expiry.  It is sent in the
// Authorization header when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT.  For passengers the subject
// is the passenger name that sales are recorded under; operators use a fixed
// subject.  The claims are sub, role, exp and iat.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
    if subject == "" {
        return AccessToken{}, ErrEmptySubject
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
