// Package otp generates and checks the time-windowed one-time codes used by
// the login flow.
//
// A fresh base32 secret is minted per login challenge. The code is derived
// from that secret and the current time window (RFC 6238, SHA1, 6 digits), with
// the window length equal to the challenge validity interval.
package otp
