package service

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkraev/plantbot/internal/domain"
	"golang.org/x/crypto/hkdf"
)

// FeedTokens issues and verifies the signed tokens embedded in calendar
// feed URLs, so a feed URL is self-authenticating without a login flow.
// The signing key is derived from the configured secret with HKDF,
// keeping the raw secret out of the signing path.
type FeedTokens struct {
	key []byte
}

// NewFeedTokens derives the signing key from secret.
func NewFeedTokens(secret string) (*FeedTokens, error) {
	reader := hkdf.New(sha256.New, []byte(secret), []byte("plantbot-feed"), nil)
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive feed key: %w", err)
	}
	return &FeedTokens{key: key}, nil
}

// Issue returns a feed token for a telegram user id.
func (f *FeedTokens) Issue(tgUserID int64) (string, error) {
	claims := jwt.MapClaims{
		"iss": "plantbot",
		"sub": strconv.FormatInt(tgUserID, 10),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.key)
	if err != nil {
		return "", fmt.Errorf("sign feed token: %w", err)
	}
	return token, nil
}

// Verify parses a feed token and returns the telegram user id it was
// issued for. Any failure maps to domain.ErrUnauthorized.
func (f *FeedTokens) Verify(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return f.key, nil
	}, jwt.WithIssuer("plantbot"))
	if err != nil || !token.Valid {
		return 0, domain.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	tgUserID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return tgUserID, nil
}
