package account

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/randx"
)

const (
	// MaxAvatarChars is the maximum accepted length of an avatar data URL.
	MaxAvatarChars = 2_000_000

	// MaxAvatarBytes is the maximum decoded avatar payload size when
	// offloading to object storage.
	MaxAvatarBytes = 2 << 20
)

// avatarMIMEToExt defines the accepted avatar image types and the object key
// extension used for each when offloading.
var avatarMIMEToExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UpdateAvatar sets or clears the user's avatar reference. A non-nil
// reference must be an image data URL no longer than MaxAvatarChars. When
// object storage is configured the payload is decoded and offloaded, and the
// stored reference becomes the object key; otherwise the data URL is stored
// inline. A replaced or cleared offloaded object is deleted asynchronously.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, avatar *string) *errs.CustomError {
	if avatar != nil {
		if !strings.HasPrefix(*avatar, "data:image/") {
			return errs.NewError(errs.ErrInvalidAvatar)
		}
		if len(*avatar) > MaxAvatarChars {
			return errs.NewError(errs.ErrAvatarTooLarge)
		}
	}

	stored := avatar
	if avatar != nil && s.avatars != nil {
		key, customErr := s.offloadAvatar(ctx, userID, *avatar)
		if customErr != nil {
			return customErr
		}
		stored = &key
	}

	var previous *string
	err := s.store.Users.Update(func(users []store.User) ([]store.User, error) {
		for i := range users {
			if users[i].ID == userID {
				previous = users[i].Avatar
				users[i].Avatar = stored
				return users, nil
			}
		}
		return nil, errs.NewError(errs.ErrUserNotFound)
	})
	if err != nil {
		return errs.From(err, errs.ErrStorageFailed)
	}

	s.deleteReplacedAvatar(previous, stored)
	return nil
}

// offloadAvatar decodes the data URL payload and uploads it to object
// storage, returning the stored object key.
func (s *Service) offloadAvatar(ctx context.Context, userID, dataURL string) (string, *errs.CustomError) {
	mimeType, payload, ok := splitDataURL(dataURL)
	if !ok {
		return "", errs.NewError(errs.ErrInvalidAvatar)
	}

	ext, allowed := avatarMIMEToExt[mimeType]
	if !allowed {
		return "", errs.NewError(errs.ErrInvalidAvatar)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", errs.NewError(errs.ErrInvalidAvatar)
	}
	if len(data) > MaxAvatarBytes {
		return "", errs.NewError(errs.ErrAvatarTooLarge)
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, randx.NewID(), ext)
	if err := s.avatars.Upload(ctx, key, mimeType, bytes.NewReader(data)); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Avatar upload failed")
		return "", errs.NewError(errs.ErrStorageFailed)
	}

	return key, nil
}

// deleteReplacedAvatar removes a superseded offloaded object in the
// background. Inline data URLs need no cleanup.
func (s *Service) deleteReplacedAvatar(previous, stored *string) {
	if s.avatars == nil || previous == nil || strings.HasPrefix(*previous, "data:") {
		return
	}
	if stored != nil && *stored == *previous {
		return
	}

	go func(key string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.avatars.Delete(ctx, key)
	}(*previous)
}

// splitDataURL splits "data:<mime>;base64,<payload>" into its parts.
func splitDataURL(dataURL string) (mimeType, payload string, ok bool) {
	rest, found := strings.CutPrefix(dataURL, "data:")
	if !found {
		return "", "", false
	}

	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}

	mimeType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}

	return mimeType, payload, true
}
