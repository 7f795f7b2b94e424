// Package credstore defines the client-side persistent key/value store that
// holds the session credential, the cached user profile and display
// preferences. The interface is deliberately free of logic so production,
// test and encrypted variants stay interchangeable.
package credstore

// Keys owned by the access layer. The federated session record key is owned
// by the identity provider integration and derived via FederatedUserKey.
const (
	KeySessionToken = "vulnwatch.session_token"
	KeyUserProfile  = "vulnwatch.user"
	KeyListPageSize = "vulnwatch.list_size"
	KeyTheme        = "vulnwatch.theme"
)

// SessionKeys are the keys cleared unconditionally on logout or session
// expiry.
var SessionKeys = []string{KeySessionToken, KeyUserProfile, KeyListPageSize, KeyTheme}

// FederatedUserKey returns the storage key of the federated session record
// for the given issuer and client ID. The record itself is opaque to the
// access layer beyond presence checks.
func FederatedUserKey(issuer, clientID string) string {
	return "oidc.user:" + issuer + ":" + clientID
}

// Store is the persistent key/value contract. Get reports absence via the
// boolean rather than an error; storage I/O failures surface from Set/Remove.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}
