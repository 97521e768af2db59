package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/auth"
	"github.com/gymstack/checkin-server/internal/store"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService *auth.Service
	store       store.Store
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, st store.Store, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		store:       st,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MemberRequest represents the member creation request body.
type MemberRequest struct {
	MembershipNumber string `json:"membership_number" binding:"required"`
	FullName         string `json:"full_name" binding:"required"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	Notes            string `json:"notes"`
}

// Register handles staff registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// Login handles staff login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// CreateMember creates a gym member.
// POST /api/members
func (h *APIHandlers) CreateMember(c *gin.Context) {
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	member, err := h.store.CreateMember(c.Request.Context(), &store.Member{
		MembershipNumber: req.MembershipNumber,
		FullName:         req.FullName,
		Phone:            req.Phone,
		Address:          req.Address,
		Notes:            req.Notes,
	})
	if err != nil {
		h.log.Error().Err(err).Str("membership_number", req.MembershipNumber).Msg("failed to create member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, memberToResponse(member))
}

// ListMembers lists all members.
// GET /api/members
func (h *APIHandlers) ListMembers(c *gin.Context) {
	members, err := h.store.ListMembers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberToResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

// GetMember fetches one member by id.
// GET /api/members/:id
func (h *APIHandlers) GetMember(c *gin.Context) {
	member, err := h.store.GetMemberByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "member not found"})
			return
		}
		h.log.Error().Err(err).Str("member_id", c.Param("id")).Msg("failed to get member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, memberToResponse(member))
}

// ListCheckIns lists check-in records, optionally filtered by member and day.
// GET /api/checkins?member=<uuid>&date=2026-08-30
func (h *APIHandlers) ListCheckIns(c *gin.Context) {
	filter := store.CheckInFilter{MemberID: c.Query("member")}

	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date, expected YYYY-MM-DD"})
			return
		}
		filter.Day = &day
	}

	records, err := h.store.ListCheckIns(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list check-ins")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]CheckInResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, checkInToResponse(rec))
	}
	c.JSON(http.StatusOK, resp)
}
