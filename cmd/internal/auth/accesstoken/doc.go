// Package accesstoken issues and verifies the short-lived signed access tokens
// handed out next to refresh secrets.
//
// Two formats are supported behind one Manager interface: HS256 JWTs and
// PASETO v4.public tokens. New picks one from Config.Format.
package accesstoken
