package models

// User is a registered account holder. The password hash is derived with the
// per-user (Iterations, KeySize) parameters so the hashing policy can be
// tightened without invalidating stored credentials.
type User struct {
	ID         int    `json:"id" db:"id"`
	Username   string `json:"username" db:"username"`
	Password   string `json:"-" db:"password"`
	Salt       string `json:"-" db:"salt"`
	Iterations int    `json:"-" db:"iterations"`
	KeySize    int    `json:"-" db:"key_size"`
}
