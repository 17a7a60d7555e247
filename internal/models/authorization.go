package models

// AppAuthorization binds one issued request/access token pair to a user.
// Only token digests take part in lookups; the access token itself is kept so
// the exchange endpoint can hand back the exact value issued earlier.
type AppAuthorization struct {
	OwnerUserID        int    `json:"owner_user_id" db:"owner_user_id"`
	RequestTokenDigest string `json:"-" db:"request_token_digest"`
	AccessTokenDigest  string `json:"-" db:"access_token_digest"`
	AccessToken        string `json:"-" db:"access_token"`
}
