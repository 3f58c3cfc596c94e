package auth

import (
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "job-chat"

// CustomClaims is what the portal puts in the session token of a student or
// a company.
type CustomClaims struct {
	Party     string `json:"party"`
	SubjectID string `json:"subject_id"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session tokens with an HS256 shared secret.
type Tokens struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokens(secret string, duration time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateToken creates a signed token for one side of the board.
func (t *Tokens) GenerateToken(party chat.Sender, subjectID string) (string, error) {
	if !party.Valid() {
		return "", fmt.Errorf("%w: party %d", errors.ErrUnknownSender, int(party))
	}
	if err := chat.ValidateIdentifier(party.String(), subjectID); err != nil {
		return "", err
	}
	now := t.now()
	claims := &CustomClaims{
		Party:     party.String(),
		SubjectID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ValidateToken checks signature, algorithm and expiry, then turns the claims
// into an Identity.
func (t *Tokens) ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errors.ErrForbidden, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", errors.ErrForbidden, jwt.ErrSignatureInvalid)
	}
	party, err := chat.ParseSender(claims.Party)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errors.ErrForbidden, err)
	}
	if err := chat.ValidateIdentifier(party.String(), claims.SubjectID); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errors.ErrForbidden, err)
	}
	return Identity{Party: party, SubjectID: claims.SubjectID}, nil
}
