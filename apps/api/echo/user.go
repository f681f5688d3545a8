package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/user"
)

const objectKey = "object"

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

func (s *Server) registerUserAPI(g *echo.Group) {
	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", s.login)
	ug.POST("/password-reset", s.resetPassword)
	ug.POST("/password-reset-confirm", s.confirmPasswordReset)
	s.docs.add(http.MethodPost, "/users/login", "users", "Exchange credentials for a token", false)
	s.docs.add(http.MethodPost, "/users/password-reset", "users", "Email a password reset link", false)
	s.docs.add(http.MethodPost, "/users/password-reset-confirm", "users", "Set a new password from a reset link", false)

	// authed endpoints
	ag := ug.Group("", s.jwt)
	ag.POST("/token-refresh", s.refreshUserToken)
	ag.POST("", s.createUser, adminMiddleware)
	ag.GET("", s.queryUsers, adminMiddleware)
	ag.GET("/roles", s.queryRoles, adminMiddleware)
	s.docs.add(http.MethodPost, "/users/token-refresh", "users", "Refresh a token", true)
	s.docs.add(http.MethodPost, "/users", "users", "Create a user", true)
	s.docs.add(http.MethodGet, "/users", "users", "List users", true)
	s.docs.add(http.MethodGet, "/users/roles", "users", "List the roles", true)

	// detail endpoints
	dg := ag.Group("/:id", s.ctxUserOrAdminMiddleware)
	dg.GET("", s.retrieveUser)
	dg.PUT("", s.updateUser)
	dg.DELETE("", s.destroyUser, adminMiddleware)
	s.docs.add(http.MethodGet, "/users/:id", "users", "Get a user", true)
	s.docs.add(http.MethodPut, "/users/:id", "users", "Update a user", true)
	s.docs.add(http.MethodDelete, "/users/:id", "users", "Delete a user", true)
}

// Handlers

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	if err := s.validate.Struct(data); err != nil {
		return err
	}

	claims, err := s.authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := s.signClaims(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	if err := s.validate.Struct(data); err != nil {
		return err
	}

	err := s.svcs.Users.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		s.logger.Error("requesting password reset", err, core.ActorFrom(ctx.Request().Context()))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	if err := s.svcs.Users.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset with the new password."})
}

func (s *Server) refreshUserToken(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.validate, s.svcs.Users); err != nil {
		return err
	}

	usr, err := s.svcs.Users.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// queryUsers supports `?search=`, repeated `?role=` and `?isActive=`.
func (s *Server) queryUsers(ctx echo.Context) error {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Roles:  ctx.QueryParams()["role"],
	}
	if val := ctx.QueryParam("isActive"); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return core.NewFieldError("isActive", "must be a boolean")
		}
		filter.IsActive = &active
	}
	filter.Clean()

	var ordering Ordering
	if err := ordering.Bind(ctx); err != nil {
		return err
	}

	users, err := s.svcs.Users.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (s *Server) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (s *Server) retrieveUser(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) updateUser(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin() {
		// `IsActive`, `Role` and `Email` can only be changed by admin
		if data.IsActive != nil || data.Role != nil || data.Email != nil {
			return errHttpForbidden
		}
	}

	if err := data.Validate(usr, s.validate, s.svcs.Users); err != nil {
		return err
	}

	usr, err = s.svcs.Users.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) destroyUser(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if usr.ID == claims.Subject {
		return errHttpForbidden
	}

	if err := s.svcs.Users.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return deleted(ctx, "user")
}

// ctxUserOrAdminMiddleware loads the `:id` user into the context. Non admins only see themselves.
func (s *Server) ctxUserOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}

		id := ctx.Param("id")
		if id == claims.Subject || claims.IsAdmin() {
			usr, err := s.svcs.Users.GetByID(ctx.Request().Context(), id)
			if err == nil {
				ctx.Set(objectKey, usr)
				return next(ctx)
			}
			if !core.IsNotFound(err) {
				return errors.Wrap(err, "finding user by ID")
			}
		}
		return errHttpNotFound
	}
}
