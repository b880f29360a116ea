/*
Package account implements registration, credential verification, session
resolution, and profile updates.

Sessions are opaque high-entropy bearer tokens persisted in the session
collection; a token resolves to exactly one user or not at all. Username
uniqueness is enforced case-insensitively inside the user collection's update
cycle, both at registration and at rename.
*/
package account

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"dmchat/internal/app/storage"
	"dmchat/internal/app/store"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/randx"
)

const (
	// UsernameMinLen and UsernameMaxLen bound the username length in runes.
	UsernameMinLen = 3
	UsernameMaxLen = 20

	// PasswordMinLen and PasswordMaxLen bound the password length in runes.
	// The upper bound stays inside bcrypt's 72-byte input limit.
	PasswordMinLen = 6
	PasswordMaxLen = 72

	// SessionTTL is how long a session token stays valid after login.
	SessionTTL = 30 * 24 * time.Hour
)

// Service owns all account state transitions against the entity store.
type Service struct {
	store *store.Store

	// avatars is the optional object storage for avatar offloading.
	// When nil, avatar data URLs are stored inline on the user record.
	avatars storage.ObjectStorage

	logger zerolog.Logger
}

// NewService constructs an account Service. avatars may be nil.
func NewService(st *store.Store, avatars storage.ObjectStorage) *Service {
	return &Service{
		store:   st,
		avatars: avatars,
		logger:  logx.Logger().With().Str("component", "account").Logger(),
	}
}

// validateUsername checks the username format rules: 3-20 runes after
// trimming, no whitespace anywhere.
func validateUsername(username string) *errs.CustomError {
	length := utf8.RuneCountInString(username)
	if length < UsernameMinLen || length > UsernameMaxLen {
		return errs.NewError(errs.ErrInvalidUsername)
	}

	for _, r := range username {
		if unicode.IsSpace(r) {
			return errs.NewError(errs.ErrInvalidUsername)
		}
	}

	return nil
}

func validatePassword(password string) *errs.CustomError {
	length := utf8.RuneCountInString(password)
	if length < PasswordMinLen || length > PasswordMaxLen {
		return errs.NewError(errs.ErrInvalidPassword)
	}

	return nil
}

// UsernameExists reports whether the username is taken, ignoring case.
func (s *Service) UsernameExists(username string) bool {
	_, ok := store.FindUserByUsername(s.store.Users.Snapshot(), username)
	return ok
}

// Register creates a new account. Uniqueness is checked case-insensitively
// inside the user collection's update cycle, so two concurrent registrations
// of the same name cannot both succeed.
func (s *Service) Register(username, password string) (store.User, *errs.CustomError) {
	username = strings.TrimSpace(username)

	if customErr := validateUsername(username); customErr != nil {
		return store.User{}, customErr
	}
	if customErr := validatePassword(password); customErr != nil {
		return store.User{}, customErr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password during registration")
		return store.User{}, errs.NewError(errs.ErrUnknown)
	}

	var created store.User
	err = s.store.Users.Update(func(users []store.User) ([]store.User, error) {
		if _, taken := store.FindUserByUsername(users, username); taken {
			return nil, errs.NewError(errs.ErrUsernameTaken)
		}

		created = store.User{
			ID:           randx.NewID(),
			Username:     username,
			PasswordHash: string(hash),
			Friends:      []string{},
			CreatedAt:    store.NowMillis(),
		}
		return append(users, created), nil
	})
	if err != nil {
		return store.User{}, errs.From(err, errs.ErrStorageFailed)
	}

	s.logger.Info().Str("user_id", created.ID).Msg("Account registered")
	return created, nil
}

// Login verifies the credentials and creates a new session. An unknown
// username and a wrong password fail identically so that login responses do
// not reveal which usernames exist.
func (s *Service) Login(username, password string) (string, store.User, *errs.CustomError) {
	u, ok := store.FindUserByUsername(s.store.Users.Snapshot(), username)
	if !ok {
		return "", store.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("user_id", u.ID).Msg("Login password mismatch")
		return "", store.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	token, err := randx.SessionToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate session token")
		return "", store.User{}, errs.NewError(errs.ErrUnknown)
	}

	now := store.NowMillis()
	err = s.store.Sessions.Update(func(sessions []store.Session) ([]store.Session, error) {
		// Expired sessions are pruned here rather than on a timer; login is
		// the only write path the session collection has.
		kept := sessions[:0]
		for _, sess := range sessions {
			if sess.ExpiresAt > now {
				kept = append(kept, sess)
			}
		}

		return append(kept, store.Session{
			Token:     token,
			UserID:    u.ID,
			CreatedAt: now,
			ExpiresAt: now + SessionTTL.Milliseconds(),
		}), nil
	})
	if err != nil {
		return "", store.User{}, errs.From(err, errs.ErrStorageFailed)
	}

	return token, u, nil
}

// Logout revokes the presented token. Revoking an unknown token is a no-op.
func (s *Service) Logout(token string) *errs.CustomError {
	err := s.store.Sessions.Update(func(sessions []store.Session) ([]store.Session, error) {
		kept := sessions[:0]
		for _, sess := range sessions {
			if sess.Token != token {
				kept = append(kept, sess)
			}
		}
		return kept, nil
	})
	if err != nil {
		return errs.From(err, errs.ErrStorageFailed)
	}

	return nil
}

// ResolveToken maps an opaque bearer token to its user. It fails closed: an
// empty, unknown, or expired token and a session whose user no longer exists
// all resolve to the same unauthorized error.
func (s *Service) ResolveToken(token string) (store.User, *errs.CustomError) {
	if token == "" {
		return store.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	now := store.NowMillis()
	for _, sess := range s.store.Sessions.Snapshot() {
		if sess.Token != token {
			continue
		}
		if sess.ExpiresAt <= now {
			break
		}

		if u, ok := store.FindUserByID(s.store.Users.Snapshot(), sess.UserID); ok {
			return u, nil
		}
		break
	}

	return store.User{}, errs.NewError(errs.ErrUnauthorized)
}

// UpdateUsername renames the account, enforcing the same format and
// case-insensitive uniqueness rules as registration.
func (s *Service) UpdateUsername(userID, username string) *errs.CustomError {
	username = strings.TrimSpace(username)

	if customErr := validateUsername(username); customErr != nil {
		return customErr
	}

	err := s.store.Users.Update(func(users []store.User) ([]store.User, error) {
		if existing, taken := store.FindUserByUsername(users, username); taken && existing.ID != userID {
			return nil, errs.NewError(errs.ErrUsernameTaken)
		}

		for i := range users {
			if users[i].ID == userID {
				users[i].Username = username
				return users, nil
			}
		}
		return nil, errs.NewError(errs.ErrUserNotFound)
	})
	if err != nil {
		return errs.From(err, errs.ErrStorageFailed)
	}

	return nil
}

// UpdatePassword replaces the credential after verifying the current one.
func (s *Service) UpdatePassword(userID, oldPassword, newPassword string) *errs.CustomError {
	if customErr := validatePassword(newPassword); customErr != nil {
		return customErr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password during password change")
		return errs.NewError(errs.ErrUnknown)
	}

	updateErr := s.store.Users.Update(func(users []store.User) ([]store.User, error) {
		for i := range users {
			if users[i].ID != userID {
				continue
			}

			if err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(oldPassword)); err != nil {
				return nil, errs.NewError(errs.ErrOldPasswordInvalid)
			}

			users[i].PasswordHash = string(hash)
			return users, nil
		}
		return nil, errs.NewError(errs.ErrUserNotFound)
	})
	if updateErr != nil {
		return errs.From(updateErr, errs.ErrStorageFailed)
	}

	return nil
}

// Public converts a persisted user record into its client-visible profile,
// resolving offloaded avatar keys to public URLs.
func (s *Service) Public(u store.User) user.Public {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}

	avatar := u.Avatar
	if avatar != nil && s.avatars != nil && !strings.HasPrefix(*avatar, "data:") {
		url := s.avatars.PublicURL(*avatar)
		avatar = &url
	}

	return user.Public{
		ID:       u.ID,
		Username: u.Username,
		Friends:  friends,
		Avatar:   avatar,
	}
}
