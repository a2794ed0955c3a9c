package api

import (
	"net/http"

	"taskhub/internal/api/respond"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleGetUser(c *gin.Context) {
	profile, err := s.users.GetUser(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var patch service.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	user, err := s.users.UpdateUser(c.Request.Context(), actor(c), c.Param("wallet"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var patch service.PreferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	user, err := s.users.UpdatePreferences(c.Request.Context(), actor(c), c.Param("wallet"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
