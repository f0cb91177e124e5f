// Package uid generates identifiers: snowflake numbers for user rows and
// UUID strings for challenge request ids and token ids.
package uid

// NumberID generates sortable numeric identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates opaque string identifiers.
type StringID interface {
	Generate() string
}
