package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/appraisal/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name string `json:"name" binding:"omitempty,min=2,max=50,orgname"`
}

func (r *createOrganizationRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

type inviteMemberRequest struct {
	Email string `json:"email" binding:"required,max=255,email"`
	Role  string `json:"role" binding:"required,oneof=SUPERVISOR EMPLOYEE"`
}

func (r *inviteMemberRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

type resendInviteRequest struct {
	ID    string `json:"id" binding:"required_without=Email"`
	Email string `json:"email" binding:"required_without=ID,omitempty,max=255,email"`
}

func (r *resendInviteRequest) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type assignEmployeesRequest struct {
	SupervisorID string   `json:"supervisorId" binding:"required"`
	EmployeeIDs  []string `json:"employeeIds" binding:"required,min=1,dive,required"`
}

func (r *assignEmployeesRequest) normalize() {
	r.SupervisorID = strings.TrimSpace(r.SupervisorID)
	for i := range r.EmployeeIDs {
		r.EmployeeIDs[i] = strings.TrimSpace(r.EmployeeIDs[i])
	}
}

// CreateOrganization answers with a re-issued token that carries the new
// owner membership.
func (s *Server) CreateOrganization(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createOrganizationRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.orgSvc.Create(c.Request.Context(), sess, orgdomain.CreateOrganizationRequest{Name: req.Name})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"organization": result.Organization,
		"name":         result.Organization.Name,
		"token":        result.Token,
	})
}

func (s *Server) ListOrganizations(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.orgSvc.ListOwned(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, items)
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))
	if err := s.orgSvc.Delete(c.Request.Context(), userID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"id": orgID})
}

func (s *Server) InviteMember(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req inviteMemberRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invitationSvc.Invite(c.Request.Context(), userID, c.Param("id"), invitationdomain.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

func (s *Server) ResendInvite(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req resendInviteRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invitationSvc.Resend(c.Request.Context(), userID, c.Param("id"), invitationdomain.ResendRequest{
		UserID: req.ID,
		Email:  req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

func (s *Server) AssignEmployees(c *gin.Context) {
	var req assignEmployeesRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.orgSvc.AssignEmployees(c.Request.Context(), c.Param("id"), orgdomain.AssignEmployeesRequest{
		SupervisorID: req.SupervisorID,
		EmployeeIDs:  req.EmployeeIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

func (s *Server) ListMembers(c *gin.Context) {
	items, err := s.orgSvc.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}

func (s *Server) ListEmployees(c *gin.Context) {
	items, err := s.orgSvc.ListEmployees(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}

func (s *Server) ListAssignments(c *gin.Context) {
	items, err := s.orgSvc.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}
