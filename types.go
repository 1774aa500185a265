package authkit

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/store"
)

// Role is the coarse authorization tag carried by users and access tokens.
type Role string

const (
	// RoleUser is the default role.
	RoleUser Role = "USER"
	// RoleAdmin grants access to administrative operations.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// IndexEmail is the unique secondary index of the user collection.
const IndexEmail = "email"

// User is the persisted identity record. Email is a case-sensitive unique key.
type User struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"password_hash"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Role               Role      `json:"role"`
	Enabled            bool      `json:"enabled"`
	Locked             bool      `json:"locked"`
	Expired            bool      `json:"expired"`
	CredentialsExpired bool      `json:"credentials_expired"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Active reports whether the account may authenticate.
func (u User) Active() bool {
	return u.Enabled && !u.Locked && !u.Expired
}

// View returns the public projection of u. It never includes the hash.
func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserSchema is the store layout of users: keyed by numeric id, uniquely
// indexed by email.
func UserSchema() store.Schema[User] {
	return store.Schema[User]{
		Name: "users",
		Key:  func(u User) string { return userKey(u.ID) },
		Indexes: func(u User) []store.Index {
			return []store.Index{{Field: IndexEmail, Value: u.Email, Unique: true}}
		},
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// UserView is the public representation of a user.
type UserView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is the result of Login, Register and Refresh.
type Session struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	User         UserView `json:"user"`
}

// Identity is the caller derived from a verified access token.
type Identity struct {
	UserID   int64
	Email    string
	Role     Role
	TenantID string
	User     UserView
}

// RegisterInput carries the fields of a new account. An empty Role means
// the configured default role.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// ProfileUpdate changes the non-nil fields of a user.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// AccountStatus is the administrative state of an account.
type AccountStatus struct {
	Enabled bool
	Locked  bool
}

// Hasher is the one-way password function. password.Argon2 and
// password.Bcrypt satisfy it.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// Mailer delivers password reset links. Delivery failures are logged by the
// Engine and never retried.
type Mailer interface {
	SendResetLink(ctx context.Context, email, token string) error
}
