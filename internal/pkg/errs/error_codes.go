/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Friend and Conversation Business Logic Errors
const (
	// ErrSelfFriend indicates that a user attempted to add themselves as a friend.
	ErrSelfFriend = 2101

	// ErrConversationNotFound indicates that the conversation does not exist or
	// the caller is not one of its members.
	ErrConversationNotFound = 2102

	// ErrMessageLength indicates that the message content is empty after trimming
	// or exceeds the maximum length.
	ErrMessageLength = 2201
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrInvalidUsername indicates that the username violates the format rules.
	ErrInvalidUsername = 3001

	// ErrInvalidPassword indicates that the password violates the length rules.
	ErrInvalidPassword = 3002

	// ErrUsernameTaken indicates that the requested username is already in use.
	ErrUsernameTaken = 3003

	// ErrInvalidCredentials indicates a failed login attempt. The same code is
	// returned for an unknown username and a wrong password.
	ErrInvalidCredentials = 3004

	// ErrUserNotFound indicates that the referenced account does not exist.
	ErrUserNotFound = 3005

	// ErrOldPasswordInvalid indicates that the current password given for a
	// password change did not verify.
	ErrOldPasswordInvalid = 3006

	// ErrInvalidAvatar indicates that the avatar reference is not an accepted image data URL.
	ErrInvalidAvatar = 3007

	// ErrAvatarTooLarge indicates that the avatar payload exceeds the size limit.
	ErrAvatarTooLarge = 3008

	// ErrUnauthorized indicates a missing, malformed, expired, or revoked bearer token.
	ErrUnauthorized = 3009
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates that persisting or loading entity state failed.
	ErrStorageFailed = 5001
)
