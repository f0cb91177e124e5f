// Package mail sends transactional email, such as one-time login codes,
// through an SMTP relay.
package mail
