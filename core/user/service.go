package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/trezcool/inspectorat/core"
)

// Collection is the store collection holding accounts.
const Collection = "users"

var (
	// errors
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrInvalidResetLink = errors.New("the reset password link is no longer valid")
)

type Service struct {
	users   core.Collection[record]
	mailSvc core.EmailService
	tokens  tokenGenerator
}

func NewService(db core.DocumentStore, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		users:   core.NewCollection[record](db, Collection),
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func notFound(id string) error { return core.NewNotFoundError("user", id) }

// CheckUniqueness fails with a ValidationError if another account already uses email.
func (svc *Service) CheckUniqueness(email string, exclUsers ...User) error {
	recs, err := svc.users.Find(context.Background(), core.Query{Filter: core.Filter{"email": email}})
	if err != nil {
		return err
	}
outer:
	for _, rec := range recs {
		for _, excl := range exclUsers {
			if rec.ID == excl.ID {
				continue outer
			}
		}
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		ID:              core.NewID(),
		Name:            nu.Name,
		Email:           nu.Email,
		Phone:           nu.Phone,
		Role:            nu.Role,
		IDDirection:     nu.IDDirection,
		IDSousDirection: nu.IDSousDirection,
		IDService:       nu.IDService,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	if err := svc.users.Insert(ctx, usr.ID, toRecord(usr)); err != nil {
		return User{}, err
	}
	return usr, nil
}

// Query lists accounts. filter.Search does a case-insensitive match on the name or the email.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	q := core.Query{Filter: core.Filter{}, Orderings: orderings}
	if filter != nil {
		if len(filter.Roles) == 1 {
			q.Filter["role"] = filter.Roles[0]
		}
		if filter.IsActive != nil {
			q.Filter["isActive"] = *filter.IsActive
		}
	}
	if len(q.Orderings) == 0 {
		q.Orderings = []core.DBOrdering{{Field: "name", Ascending: true}}
	}

	recs, err := svc.users.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(recs))
	for _, rec := range recs {
		if filter != nil && !filter.matches(rec.User) {
			continue
		}
		users = append(users, rec.user())
	}
	return users, nil
}

func (qf *QueryFilter) matches(usr User) bool {
	if len(qf.Roles) > 1 {
		var ok bool
		for _, role := range qf.Roles {
			if usr.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if qf.Search != "" {
		return strings.Contains(strings.ToLower(usr.Name), qf.Search) ||
			strings.Contains(strings.ToLower(usr.Email), qf.Search)
	}
	return true
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	rec, err := svc.users.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, notFound(id)
		}
		return User{}, err
	}
	return rec.user(), nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	recs, err := svc.users.Find(ctx, core.Query{Filter: core.Filter{"email": email}})
	if err != nil {
		return User{}, err
	}
	if len(recs) == 0 {
		return User{}, notFound(email)
	}
	return recs[0].user(), nil
}

// GetMany loads the accounts for ids; unknown ids are skipped.
func (svc *Service) GetMany(ctx context.Context, ids []string) ([]User, error) {
	recs, err := svc.users.GetMany(ctx, core.Unique(ids))
	if err != nil {
		return nil, err
	}
	users := make([]User, len(recs))
	for i, rec := range recs {
		users[i] = rec.user()
	}
	return users, nil
}

// Exists reports whether id is a known account.
func (svc *Service) Exists(ctx context.Context, id string) (bool, error) {
	return svc.users.Exists(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr, err = uu.ApplyTo(usr); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()
	return usr, svc.replace(ctx, usr)
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()
	return usr, svc.replace(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := core.Now()
	usr.LastLogin = &now
	return usr, svc.replace(ctx, usr)
}

func (svc *Service) replace(ctx context.Context, usr User) error {
	if err := svc.users.Replace(ctx, usr.ID, toRecord(usr)); err != nil {
		if core.IsNotFound(err) {
			return notFound(usr.ID)
		}
		return err
	}
	return nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.users.Delete(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return notFound(id)
		}
		return err
	}
	return nil
}

// RequestPasswordReset emails a reset link to the active account owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return notFound(email)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Réinitialisation du mot de passe",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrInvalidResetLink)
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}
