package entity

// Account is a stored user account; matches only need the display name.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
