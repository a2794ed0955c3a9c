package api

import (
	"net/http"

	"taskhub/internal/api/respond"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateComment(c *gin.Context) {
	var req service.CreateCommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	comment, err := s.comments.CreateComment(c.Request.Context(), actor(c), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleListComments(c *gin.Context) {
	items, err := s.comments.ListComments(c.Request.Context(), actor(c), c.Param("task_id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleGetComment(c *gin.Context) {
	comment, err := s.comments.GetComment(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (s *Server) handleUpdateComment(c *gin.Context) {
	var patch service.CommentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	comment, err := s.comments.UpdateComment(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	if err := s.comments.DeleteComment(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
