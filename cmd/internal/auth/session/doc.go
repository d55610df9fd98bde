// Package session implements the session aggregate and its refresh-token
// rotation state machine.
//
// A Session owns an ordered chain of RefreshToken links. Exactly one link is
// active while the session is active; every successful rotation retires the
// active link and appends a new one pointing back at it. Presenting a secret
// that no longer matches the active link is treated as reuse and ends the whole
// session.
//
// The package also defines the Repository boundary and ships a Postgres and an
// in-memory implementation. Transport (HTTP) and access-token signing live elsewhere.
package session
