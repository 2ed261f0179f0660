package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
)

type successResponse struct {
	Success  bool                 `json:"success"`
	Data     any                  `json:"data"`
	PageInfo *pagination.PageInfo `json:"pageInfo,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, successResponse{Success: true, Data: data})
}

func respondPage(c *gin.Context, status int, data any, pageInfo *pagination.PageInfo) {
	c.JSON(status, successResponse{Success: true, Data: data, PageInfo: pageInfo})
}
