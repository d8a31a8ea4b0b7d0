// Auth HTTP handlers.
//
//   - POST /auth/signup  (register, 201)
//   - POST /auth/login   (authenticate, 200)
//
// Both answer with a session token plus the account's email and id.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/services"
)

//
// DTOs
//

// SignupRequest is the JSON payload for account registration.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email,max=256" example:"user@example.com"`
	Password string `json:"password" binding:"required,min=6" example:"Secret123"`
}

// LoginRequest is the JSON payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"Secret123"`
}

// AuthResponse carries the session token.
type AuthResponse struct {
	Token  string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Email  string `json:"email" example:"user@example.com"`
	UserID uint   `json:"userId" example:"1"`
}

func toAuthResponse(r *services.AuthResult) AuthResponse {
	return AuthResponse{Token: r.Token, Email: r.Email, UserID: r.UserID}
}

//
// Handlers
//

// Signup godoc
// @ID          signup
// @Summary     Register an account
// @Description Creates an account and returns a session token. Emails are matched exactly.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SignupRequest  true  "Credentials"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  middleware.ErrorResponse  "Validation failed"
// @Failure     409   {object}  middleware.ErrorResponse  "Email already registered"
// @Failure     429   {object}  middleware.ErrorResponse  "Rate limited"
// @Failure     500   {object}  middleware.ErrorResponse  "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.authSvc.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "", toAuthResponse(res))
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a session token. Unknown emails and wrong passwords fail identically.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  middleware.ErrorResponse  "Validation failed"
// @Failure     401   {object}  middleware.ErrorResponse  "Invalid email or password"
// @Failure     429   {object}  middleware.ErrorResponse  "Rate limited"
// @Failure     500   {object}  middleware.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toAuthResponse(res))
}
