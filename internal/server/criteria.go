package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
)

type createCriteriaRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	MaxScore *int   `json:"maxScore" binding:"required,gt=0,lte=2147483647"`
}

func (r *createCriteriaRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

type updateCriteriaRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=100"`
	MaxScore *int    `json:"maxScore" binding:"omitempty,gt=0,lte=2147483647"`
}

func (r *updateCriteriaRequest) normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
}

func (s *Server) CreateCriteria(c *gin.Context) {
	var req createCriteriaRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.criteriaSvc.Create(c.Request.Context(), c.Param("id"), criteriadomain.CreateCriteriaRequest{
		Name:     req.Name,
		MaxScore: *req.MaxScore,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, item)
}

func (s *Server) ListCriteria(c *gin.Context) {
	items, err := s.criteriaSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}

func (s *Server) UpdateCriteria(c *gin.Context) {
	var req updateCriteriaRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.criteriaSvc.Update(c.Request.Context(), c.Param("id"), c.Param("criteriaId"), criteriadomain.UpdateCriteriaRequest{
		Name:     req.Name,
		MaxScore: req.MaxScore,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, item)
}

func (s *Server) DeleteCriteria(c *gin.Context) {
	criteriaID := c.Param("criteriaId")
	if err := s.criteriaSvc.Delete(c.Request.Context(), c.Param("id"), criteriaID); err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": criteriaID})
}
