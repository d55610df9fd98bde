// Package identity owns user accounts: registration records and the
// credential lookup used by login.
//
// Password hashing lives in cmd/security/password; this package only stores
// the encoded hash.
package identity
