package api

import (
	"net/http"

	"taskhub/internal/api/respond"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateTask(c *gin.Context) {
	var req service.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	task, err := s.tasks.CreateTask(c.Request.Context(), actor(c), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.tasks.ListTasks(c.Request.Context(), actor(c), service.ListTasksQuery{
		WalletAddress: c.Query("wallet_address"),
		UserID:        c.Query("user_id"),
		GroupID:       c.Query("group_id"),
	})
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.GetTask(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	task, err := s.tasks.UpdateTask(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tasks.DeleteTask(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (s *Server) handleAddAttachment(c *gin.Context) {
	var req service.AttachmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	a, err := s.evidence.AddAttachment(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleListAttachments(c *gin.Context) {
	items, err := s.evidence.ListAttachments(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handlePresignUpload(c *gin.Context) {
	var req service.UploadURLInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	u, err := s.evidence.PresignUpload(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleAddVerification(c *gin.Context) {
	var req service.VerificationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	v, err := s.evidence.AddVerification(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Server) handleListVerifications(c *gin.Context) {
	items, err := s.evidence.ListVerifications(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
