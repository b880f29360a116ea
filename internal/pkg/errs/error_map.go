/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Friend and Conversation Business Logic Errors
	ErrSelfFriend:           {Code: ErrSelfFriend, Message: "You cannot add yourself as a friend.", Status: http.StatusBadRequest},
	ErrConversationNotFound: {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrMessageLength:        {Code: ErrMessageLength, Message: "Message must be between 1 and 2000 characters.", Status: http.StatusBadRequest},

	// 3xxx: User, Session, and Security Errors
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Username must be 3-20 characters without whitespace.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be at least 6 characters.", Status: http.StatusBadRequest},
	ErrUsernameTaken:      {Code: ErrUsernameTaken, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrOldPasswordInvalid: {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect.", Status: http.StatusUnauthorized},
	ErrInvalidAvatar:      {Code: ErrInvalidAvatar, Message: "Avatar must be an image data URL.", Status: http.StatusBadRequest},
	ErrAvatarTooLarge:     {Code: ErrAvatarTooLarge, Message: "Avatar is too large.", Status: http.StatusBadRequest},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
