package enroll

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/educlub/enroll/middleware/jwtware"
)

// Controller exposes the registration and identity operations over HTTP
type Controller struct {
	Registrar *Registrar
	Identity  *IdentityService
	Tokens    TokenService
	Config    Config
	Logger    Logger
}

// ControllerOption customizes the controller
type ControllerOption func(*Controller)

// WithControllerLogger overrides the logger
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.Logger = l
		}
	}
}

// NewController wires the HTTP surface
func NewController(registrar *Registrar, identity *IdentityService, tokens TokenService, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		Registrar: registrar,
		Identity:  identity,
		Tokens:    tokens,
		Config:    cfg,
		Logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts all routes on the app
func (h *Controller) RegisterRoutes(app *fiber.App) {
	app.Post("/register", h.RegisterApplicant)

	student := app.Group("/student")
	student.Post("/register", h.StudentRegister)
	student.Post("/verify", h.StudentVerify)
	student.Post("/login", h.StudentLogin)
	student.Get("/logout", h.StudentLogout)

	profileGuard := jwtware.New(jwtware.Config{
		CookieName:     h.Config.GetCookieName(),
		TokenValidator: tokenValidatorAdapter{h.Tokens},
		RequiredRole:   RoleStudent,
	})
	student.Patch("/profile", profileGuard, h.StudentUpdateProfile)

	adminGuard := jwtware.New(jwtware.Config{
		CookieName:     h.Config.GetCookieName(),
		TokenValidator: tokenValidatorAdapter{h.Tokens},
		RequiredRole:   RoleAdmin,
	})
	admin := app.Group("/admin", adminGuard)
	admin.Patch("/students/:id", h.AdminUpdateStudent)
	admin.Delete("/students/:id", h.AdminDeleteStudent)
}

// tokenValidatorAdapter narrows TokenService for the middleware
type tokenValidatorAdapter struct {
	tokens TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RegisterApplicant handles POST /register
func (h *Controller) RegisterApplicant(c *fiber.Ctx) error {
	var input RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	applicant, err := h.Registrar.Register(c.Context(), input)
	if err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(applicant)
}

// StudentRegister handles POST /student/register
func (h *Controller) StudentRegister(c *fiber.Ctx) error {
	var input SignupInput
	if err := c.BodyParser(&input); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	student, _, err := h.Identity.Signup(c.Context(), input)
	if err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    student.ID,
		"name":  student.Name,
		"email": student.Email,
	})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// StudentVerify handles POST /student/verify
func (h *Controller) StudentVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	if err := h.Identity.Verify(c.Context(), req.Email, req.Code); err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.JSON(fiber.Map{"verified": true})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StudentLogin handles POST /student/login
func (h *Controller) StudentLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	token, student, err := h.Identity.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return WriteError(c, h.Logger, err)
	}

	SetSessionCookie(c, h.Config, token)

	return c.JSON(student.Summary())
}

// StudentLogout handles GET /student/logout
func (h *Controller) StudentLogout(c *fiber.Ctx) error {
	ClearSessionCookie(c, h.Config)
	return c.Redirect("/", fiber.StatusFound)
}

// StudentUpdateProfile handles PATCH /student/profile
func (h *Controller) StudentUpdateProfile(c *fiber.Ctx) error {
	claims, ok := jwtware.ClaimsFromContext(c, jwtware.DefaultContextKey)
	if !ok {
		return WriteError(c, h.Logger, ErrInvalidSession)
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return WriteError(c, h.Logger, ErrInvalidSession)
	}

	var update ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	student, err := h.Identity.UpdateProfile(c.Context(), id, update)
	if err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.JSON(student.Summary())
}

type adminStudentUpdate struct {
	Status     StudentStatus `json:"status,omitempty"`
	IsApproved *bool         `json:"is_approved,omitempty"`
}

// AdminUpdateStudent handles PATCH /admin/students/:id
func (h *Controller) AdminUpdateStudent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, h.Logger, errors.New("invalid student id", errors.CategoryValidation).
			WithTextCode(textCodeValidationFailed).
			WithCode(errors.CodeBadRequest))
	}

	var req adminStudentUpdate
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, h.Logger, errors.Wrap(err, errors.CategoryBadInput, "malformed request body").
			WithTextCode(textCodeValidationFailed))
	}

	actor := h.actorFromSession(c)

	var student *Student
	switch {
	case req.IsApproved != nil && *req.IsApproved:
		student, err = h.Identity.Approve(c.Context(), actor, id)
	case req.Status == StudentStatusSuspended:
		student, err = h.Identity.Suspend(c.Context(), actor, id)
	case req.Status == StudentStatusActive:
		student, err = h.Identity.Reinstate(c.Context(), actor, id)
	default:
		err = errors.New("no applicable status change", errors.CategoryValidation).
			WithTextCode(textCodeValidationFailed).
			WithCode(errors.CodeBadRequest)
	}
	if err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.JSON(student.Summary())
}

// AdminDeleteStudent handles DELETE /admin/students/:id
func (h *Controller) AdminDeleteStudent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, h.Logger, errors.New("invalid student id", errors.CategoryValidation).
			WithTextCode(textCodeValidationFailed).
			WithCode(errors.CodeBadRequest))
	}

	if err := h.Identity.Delete(c.Context(), h.actorFromSession(c), id); err != nil {
		return WriteError(c, h.Logger, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *Controller) actorFromSession(c *fiber.Ctx) ActorRef {
	if claims, ok := jwtware.ClaimsFromContext(c, jwtware.DefaultContextKey); ok {
		return ActorRef{ID: claims.UserID(), Type: claims.Role()}
	}
	return ActorRef{Type: "system"}
}
