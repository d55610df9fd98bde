// Package usecase drives the session aggregate: login, logout, logout
// everywhere and refresh-token rotation.
//
// Every write runs inside a db.UnitOfWork, and access tokens are issued only
// after the write has committed.
package usecase
