// Package clock hides time.Now behind Clocker so OTP windows, resend
// cooldowns and token lifetimes can be driven by a Manual clock in tests.
package clock
