/*
Package user defines the client-visible representation of an account.

The persisted record (store.User) carries the password hash and must never be
serialized to clients; every response and event goes through Public instead.
*/
package user

// Public is the profile shape exposed over the API and the live channel.
type Public struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Friends  []string `json:"friends"`
	Avatar   *string  `json:"avatar"`
}

// Unknown is the placeholder profile returned when a conversation peer no
// longer resolves to an account.
func Unknown(id string) Public {
	return Public{
		ID:       id,
		Username: "Unknown",
		Friends:  []string{},
	}
}
