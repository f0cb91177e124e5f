// Package jwt issues and verifies the signed access and refresh tokens handed
// out after a successful login.
//
// Tokens are HS512 signed and carry a "typ" claim so a refresh token can never
// be used as an access token and the other way around.
package jwt
