package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	invitationdomain "github.com/smallbiznis/appraisal/internal/invitation/domain"
)

type registerRequest struct {
	OrganizationName string `json:"organizationName" binding:"required,min=2,max=50,orgname"`
	FirstName        string `json:"firstName" binding:"required,min=2,max=50,personname"`
	LastName         string `json:"lastName" binding:"required,min=2,max=50,personname"`
	Email            string `json:"email" binding:"required,max=255,email"`
	Password         string `json:"password" binding:"required,min=8,max=100,strongpassword"`
	ConfirmPassword  string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

func (r *registerRequest) normalize() {
	r.OrganizationName = strings.TrimSpace(r.OrganizationName)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,max=255,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (r *loginRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Password = strings.TrimSpace(r.Password)
}

type acceptInviteRequest struct {
	Token     string `json:"token" binding:"required"`
	FirstName string `json:"firstName" binding:"required,min=2,max=50,personname"`
	LastName  string `json:"lastName" binding:"required,min=2,max=50,personname"`
	Password  string `json:"password" binding:"required,min=8,max=100,strongpassword"`
}

func (r *acceptInviteRequest) normalize() {
	r.Token = strings.TrimSpace(r.Token)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.authSvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Password:         req.Password,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, result)
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

func (s *Server) WhoAmI(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	profile, err := s.authSvc.WhoAmI(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, profile)
}

// AcceptInvite takes the invitation token from the body; session tokens are
// rejected with INVALID_TOKEN_TYPE.
func (s *Server) AcceptInvite(c *gin.Context) {
	var req acceptInviteRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invitationSvc.Accept(c.Request.Context(), invitationdomain.AcceptRequest{
		Token:     req.Token,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}
