package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"crashcore/internal/apperr"
	"crashcore/internal/auth"
	"crashcore/internal/store"
)

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         userView `json:"user"`
}

type userView struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	Role    string `json:"role"`
	Balance float64 `json:"balance"`
}

func toUserView(u *store.User) userView {
	return userView{ID: u.ID, Handle: u.Handle, Role: string(u.Role), Balance: u.Balance.Float64()}
}

// auth.externalPlatform
func (s *Server) authExternalHandler(c *fiber.Ctx) error {
	var body struct {
		Platform string `json:"platform"`
		InitData string `json:"initData"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, pair, err := s.authSvc.AuthenticateExternalPlatform(c.Context(), body.Platform, auth.ExternalPayload{Raw: body.InitData}, s.cfg.External.BotToken)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toUserView(u)})
}

// auth.adminLogin
func (s *Server) authAdminLoginHandler(c *fiber.Ctx) error {
	var body struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, pair, err := s.authSvc.Login(c.Context(), body.Handle, body.Password)
	if err != nil {
		return writeErr(c, err)
	}
	if u.Role != store.RoleAdmin {
		return writeErr(c, apperr.New(apperr.PermissionDenied, "not an admin account"))
	}
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toUserView(u)})
}

// auth.adminRegister: gated by a shared pre-shared key and by environment
// (spec §4.3: forbidden in production unless explicitly enabled).
func (s *Server) authAdminRegisterHandler(c *fiber.Ctx) error {
	if !s.cfg.Admin.RegistrationEnabled {
		return writeErr(c, apperr.New(apperr.PermissionDenied, "admin registration is disabled"))
	}
	if s.cfg.Environment == "production" {
		return writeErr(c, apperr.New(apperr.PermissionDenied, "admin registration is forbidden in production"))
	}
	var body struct {
		Handle         string `json:"handle"`
		Password       string `json:"password"`
		RegistrationKey string `json:"registrationKey"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if s.cfg.Admin.RegistrationKey == "" || body.RegistrationKey != s.cfg.Admin.RegistrationKey {
		return writeErr(c, apperr.New(apperr.PermissionDenied, "invalid registration key"))
	}
	u, pair, err := s.authSvc.Register(c.Context(), body.Handle, body.Password)
	if err != nil {
		return writeErr(c, err)
	}
	if _, err := s.gw.UpdateUserAdmin(c.Context(), u.ID, store.UserFields{Role: rolePtr(store.RoleAdmin)}); err != nil {
		return writeErr(c, err)
	}
	u.Role = store.RoleAdmin
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toUserView(u)})
}

func rolePtr(r store.Role) *store.Role { return &r }

// auth.refresh
func (s *Server) authRefreshHandler(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, pair, err := s.authSvc.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toUserView(u)})
}

// auth.logout
func (s *Server) authLogoutHandler(c *fiber.Ctx) error {
	s.authSvc.Logout(claimsFrom(c).UserID)
	return c.SendStatus(fiber.StatusNoContent)
}

// auth.profile
func (s *Server) authProfileHandler(c *fiber.Ctx) error {
	u, err := s.gw.FindUser(c.Context(), claimsFrom(c).UserID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(toUserView(u))
}

// auth.changePassword
func (s *Server) authChangePasswordHandler(c *fiber.Ctx) error {
	var body struct {
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&body); err != nil || body.NewPassword == "" {
		return badRequest(c, "newPassword is required")
	}
	if _, err := s.gw.UpdateUser(c.Context(), claimsFrom(c).UserID, store.UserFields{Password: &body.NewPassword}); err != nil {
		return writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
