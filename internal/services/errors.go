package services

import "errors"

// ErrNotFound is returned when a username, app ID or token has no matching
// record. Business-rule rejections (duplicate username, overdraft) are
// reported as booleans instead; anything else is a storage failure and wraps
// the driver error.
var ErrNotFound = errors.New("record not found")
