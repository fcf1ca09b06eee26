package models

// Identity is the public view of an authenticated user. It never carries
// secret material in any serialized form.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
}

// Credential is a server-side login record. It is static configuration
// and is never serialized outward.
type Credential struct {
	Email    string
	Password string
	Identity Identity
}
