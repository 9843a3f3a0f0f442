package downloads

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired means the token was valid once but its 24h window
	// has passed.
	ErrTokenExpired = errors.New("download token expired")

	// ErrTokenInvalid covers malformed, forged or otherwise unusable
	// tokens.
	ErrTokenInvalid = errors.New("download token invalid")
)

// Claims carried in a download token.
type Claims struct {
	LeadID        string `json:"lead_id"`
	LibraryItemID string `json:"library_item_id"`
	Email         string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed download tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. ttl defaults to 24 hours.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("downloads: token secret required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token binding the lead to the library item. The returned
// jti identifies the token for single-use tracking.
func (t *TokenIssuer) Issue(leadID, libraryItemID, email string) (token, jti string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(t.ttl)
	jti = uuid.NewString()

	claims := Claims{
		LeadID:        leadID,
		LibraryItemID: libraryItemID,
		Email:         email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("downloads: sign token: %w", err)
	}
	return token, jti, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.LibraryItemID == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
