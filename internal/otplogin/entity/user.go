package entity

type User struct {
	ID       int64
	Username string
	Email    string
	Active   bool
}

// TokenPair is handed out after a successful verification.
type TokenPair struct {
	Access  string
	Refresh string
}
