package user

import (
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/inspectorat/core"
)

// Roles
const (
	RoleAdmin      = "admin"
	RoleInspecteur = "inspecteur"
	RoleAgent      = "agent"
)

var (
	AllRoles = []string{RoleAdmin, RoleInspecteur, RoleAgent}

	Roles = []Role{
		{Name: "Agent", Value: RoleAgent},
		{Name: "Inspecteur", Value: RoleInspecteur},
		{Name: "Administrateur", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Role            string          `json:"role"`
	IDDirection     string          `json:"idDirection,omitempty"`
	IDSousDirection string          `json:"idSousDirection,omitempty"`
	IDService       string          `json:"idService,omitempty"`
	IsActive        bool            `json:"isActive"`
	PasswordHash    []byte          `json:"-"`
	CreatedAt       core.Timestamp  `json:"createdAt"`
	UpdatedAt       core.Timestamp  `json:"updatedAt"`
	LastLogin       *core.Timestamp `json:"lastLogin,omitempty"`
}

// record is the stored shape of a User: the password hash is kept out of API responses.
type record struct {
	User
	PasswordHash []byte `json:"passwordHash"`
}

func toRecord(usr User) record { return record{User: usr, PasswordHash: usr.PasswordHash} }

func (r record) user() User {
	usr := r.User
	usr.PasswordHash = r.PasswordHash
	return usr
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsInspecteur() bool { return u.Role == RoleInspecteur }

// Actor returns the request actor for this account.
func (u *User) Actor(requestID string) core.Actor {
	return core.Actor{AccountID: u.ID, Email: u.Email, Role: u.Role, RequestID: requestID}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone"`
	Role            string `json:"role" validate:"required,role"`
	IDDirection     string `json:"idDirection" validate:"omitempty,docid"`
	IDSousDirection string `json:"idSousDirection" validate:"omitempty,docid"`
	IDService       string `json:"idService" validate:"omitempty,docid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields are left untouched.
type UpdateUser struct {
	Name            *string `json:"name" validate:"omitempty,notblank"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Phone           *string `json:"phone"`
	Role            *string `json:"role" validate:"omitempty,role"`
	IDDirection     *string `json:"idDirection" validate:"omitempty,docid"`
	IDSousDirection *string `json:"idSousDirection" validate:"omitempty,docid"`
	IDService       *string `json:"idService" validate:"omitempty,docid"`
	IsActive        *bool   `json:"isActive"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm" validate:"required_with=Password,omitempty,eqfield=Password"`

	orig User
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	uu.orig = origUsr
	if uu.Name != nil {
		*uu.Name = core.CleanString(*uu.Name)
	}
	if uu.Email != nil {
		*uu.Email = core.CleanString(*uu.Email, true /* lower */)
	}
	if uu.Phone != nil {
		*uu.Phone = core.CleanString(*uu.Phone)
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email != nil && *uu.Email != origUsr.Email {
		return svc.CheckUniqueness(*uu.Email, origUsr)
	}
	return nil
}

// ApplyTo returns usr with the provided fields overwritten.
func (uu UpdateUser) ApplyTo(usr User) (User, error) {
	if uu.Name != nil {
		usr.Name = *uu.Name
	}
	if uu.Email != nil {
		usr.Email = *uu.Email
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.IDDirection != nil {
		usr.IDDirection = *uu.IDDirection
	}
	if uu.IDSousDirection != nil {
		usr.IDSousDirection = *uu.IDSousDirection
	}
	if uu.IDService != nil {
		usr.IDService = *uu.IDService
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != nil && *uu.Password != "" {
		if err := usr.SetPassword(*uu.Password); err != nil {
			return User{}, err
		}
	}
	return usr, nil
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"isActive"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
}
