package model

type UserID string

type RegisterParams struct {
	Handle   string `json:"handle" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginParams struct {
	Handle   string `json:"handle" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SessionParams struct {
	Jwt string `json:"jwt" validate:"required"`
}

// UserPatch carries the profile fields a caller may change. Nil fields are left
// untouched.
type UserPatch struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,min=1"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=1"`
}

func (p *UserPatch) IsEmpty() bool {
	return p.Email == nil && p.Password == nil
}

type User struct {
	ID       UserID `db:"Id" dynamodbav:"Id" redis:"Id" json:"Id"`
	Handle   string `db:"Handle" dynamodbav:"Handle" redis:"Handle" json:"Handle"`
	Email    string `db:"Email" dynamodbav:"Email" redis:"Email" json:"Email"`
	Password string `db:"Password" dynamodbav:"Password,omitempty" redis:"Password" json:"-"`
	Jwt      string `db:"Jwt" dynamodbav:"Jwt,omitempty" redis:"Jwt" json:"Jwt,omitempty"`
}

// UserFields is the projection used whenever users are returned to a caller;
// the password hash never leaves the store through it.
var UserFields = []string{"Id", "Handle", "Email", "Jwt"}

type Session struct {
	Jwt string `json:"jwt"`
}
