package models

// User roles
const (
	RoleAdmin    = "admin"
	RoleClient   = "client"
	RolePanelist = "panelist"
)

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined
// in the user collection in mongo
type UserDetails struct {
	Email      string      `json:"email" bson:"email"`
	Name       string      `json:"name" bson:"name"`
	Password   string      `json:"password" bson:"password"`
	Role       string      `json:"role" bson:"role"` // "admin", "client", "panelist"
	PanelistID string      `json:"panelistID,omitempty" bson:"panelistID,omitempty"`
	CreatedAt  interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt  interface{} `json:"updatedAt" bson:"updatedAt"`
}

// UserContext is the acting-user identity supplied by the authentication
// boundary. The core never issues or validates credentials itself.
type UserContext struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	PanelistID string `json:"panelistId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// IsAdmin reports whether the acting user holds the admin role
func (u UserContext) IsAdmin() bool {
	return u.Role == RoleAdmin
}
