package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/willemschots/rentals/internal/email"
	"github.com/willemschots/rentals/internal/errorz"
	"github.com/willemschots/rentals/internal/krypto"
)

var (
	ErrDuplicateUser      = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNameTooLong        = fmt.Errorf("name must be at most %d characters", MaxNameLength)
)

// Service is the type that provides the main rules for
// user management and authentication.
type Service struct {
	store Store

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store) (*Service, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}

	hash, err := krypto.HashArgon2(b)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:          s,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// CreateUser creates a new user. The email address is normalized before it
// is stored and the password is stored as an argon2id hash.
//
// Invalid input is reported as errorz.InvalidInput, keyed by field. A user
// with the same (normalized) email results in ErrDuplicateUser keyed by "email".
func (s *Service) CreateUser(ctx context.Context, rawEmail, rawPassword string, extra UserExtra) (User, error) {
	var errs errorz.InvalidInput

	addr, err := email.ParseNormalizedAddress(rawEmail)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: "email", Err: err})
	}

	pwd, err := ParsePassword(rawPassword)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: "password", Err: err})
	}

	if utf8.RuneCountInString(extra.Name) > MaxNameLength {
		errs = append(errs, errorz.Keyed{Key: "name", Err: ErrNameTooLong})
	}

	if len(errs) > 0 {
		return User{}, errs
	}

	hash, err := pwd.Hash()
	if err != nil {
		return User{}, err
	}

	now := s.NowFunc()
	user := User{
		Email:        addr,
		Name:         extra.Name,
		PasswordHash: hash,
		IsActive:     valueOr(extra.IsActive, true),
		IsStaff:      valueOr(extra.IsStaff, true),
		IsSuperuser:  false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	duplicate := errorz.InvalidInput{errorz.Keyed{Key: "email", Err: ErrDuplicateUser}}

	err = s.inTx(ctx, func(tx Tx) error {
		users, txErr := tx.FindUsers(&UserFilter{
			Emails: []email.Address{user.Email},
		})
		if txErr != nil {
			return txErr
		}

		if len(users) > 0 {
			return duplicate
		}

		txErr = tx.CreateUser(&user)
		if errors.Is(txErr, errorz.ErrConstraintViolated) {
			// Lost a race with a concurrent registration.
			return errors.Join(duplicate, txErr)
		}

		return txErr
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// CreateSuperuser creates a user via CreateUser and then promotes it
// to a staff member and superuser.
func (s *Service) CreateSuperuser(ctx context.Context, rawEmail, rawPassword string) (User, error) {
	user, err := s.CreateUser(ctx, rawEmail, rawPassword, UserExtra{})
	if err != nil {
		return User{}, err
	}

	user.IsStaff = true
	user.IsSuperuser = true
	user.UpdatedAt = s.NowFunc()

	err = s.inTx(ctx, func(tx Tx) error {
		return tx.UpdateUser(&user)
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate returns the active user that matches the credentials.
// It returns ErrInvalidCredentials if there is no such user.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, error) {
	var users []User
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		users, txErr = tx.FindUsers(&UserFilter{
			Emails:   []email.Address{email.NormalizeAddress(c.Email)},
			IsActive: ptr(true),
		})
		return txErr
	})
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 {
		// Even if no user is found we compare to a hash to prevent timing differences
		// that could result in user enumeration attacks.
		_ = c.Password.Match(s.comparisonHash)
		return User{}, ErrInvalidCredentials
	}

	if !c.Password.Match(users[0].PasswordHash) {
		return User{}, ErrInvalidCredentials
	}

	return users[0], nil
}

// FindActiveUser finds the active user with the given id.
// It returns errorz.ErrNotFound if no such user exists.
func (s *Service) FindActiveUser(ctx context.Context, id int) (User, error) {
	var users []User
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		users, txErr = tx.FindUsers(&UserFilter{
			IDs:      []int{id},
			IsActive: ptr(true),
		})
		return txErr
	})
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 {
		return User{}, errorz.ErrNotFound
	}

	return users[0], nil
}

func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, rBackErr)
		}
		return err
	}

	return tx.Commit()
}

func ptr[T any](v T) *T {
	return &v
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
