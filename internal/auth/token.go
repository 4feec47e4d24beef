package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/willemschots/rentals/internal/krypto"
)

const (
	tokenIssuer   = "rentals"
	tokenAudience = "rentals-api"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies PASETO v4.local access tokens.
// A token identifies a user by its id, kept in the subject claim.
type TokenService struct {
	key    paseto.V4SymmetricKey
	expiry time.Duration

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

// NewTokenService creates a token service that encrypts tokens with key.
func NewTokenService(key krypto.Key, expiry time.Duration) (*TokenService, error) {
	if expiry <= 0 {
		return nil, fmt.Errorf("token expiry must be positive, got %s", expiry)
	}

	k, err := paseto.V4SymmetricKeyFromBytes(key.SecretValue())
	if err != nil {
		return nil, fmt.Errorf("failed to create token key: %w", err)
	}

	return &TokenService{
		key:     k,
		expiry:  expiry,
		NowFunc: time.Now,
	}, nil
}

// Issue creates a new access token for the user.
func (s *TokenService) Issue(u User) (string, error) {
	if u.ID <= 0 {
		return "", fmt.Errorf("user id %d: %w", u.ID, ErrInvalidToken)
	}

	now := s.NowFunc()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(strconv.Itoa(u.ID))
	token.SetJti(uuid.NewString())
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.expiry))

	return token.V4Encrypt(s.key, nil), nil
}

// Verify decrypts and validates the token and returns the id of the user it was issued to.
// Any problem with the token results in ErrInvalidToken.
func (s *TokenService) Verify(raw string) (int, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.ValidAt(s.NowFunc()))

	token, err := parser.ParseV4Local(s.key, raw, nil)
	if err != nil {
		return 0, errors.Join(ErrInvalidToken, err)
	}

	sub, err := token.GetSubject()
	if err != nil {
		return 0, errors.Join(ErrInvalidToken, err)
	}

	id, err := strconv.Atoi(sub)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, sub)
	}

	return id, nil
}

// Expiry returns how long issued tokens are valid.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}
