package api

import (
	"net/http"
	"strconv"
	"strings"

	"taskhub/internal/api/respond"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req service.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	group, err := s.groups.CreateGroup(c.Request.Context(), actor(c), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// handleListGroups 支持 ?wallet_address=、?wallet_addresses=a,b（可重复）与 ?is_public=。
func (s *Server) handleListGroups(c *gin.Context) {
	q := service.ListGroupsQuery{WalletAddress: c.Query("wallet_address")}
	for _, raw := range c.QueryArray("wallet_addresses") {
		for _, w := range strings.Split(raw, ",") {
			if w = strings.TrimSpace(w); w != "" {
				q.WalletAddresses = append(q.WalletAddresses, w)
			}
		}
	}
	if raw, ok := c.GetQuery("is_public"); ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.BadRequest(c, "invalid is_public")
			return
		}
		q.IsPublic = &v
	}

	groups, err := s.groups.ListGroups(c.Request.Context(), actor(c), q)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) handleGetGroup(c *gin.Context) {
	group, err := s.groups.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(c *gin.Context) {
	var patch service.GroupPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	group, err := s.groups.UpdateGroup(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(c *gin.Context) {
	if err := s.groups.DeleteGroup(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group deleted"})
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req service.AddMemberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	m, err := s.groups.AddMember(c.Request.Context(), actor(c), req)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleJoinGroup(c *gin.Context) {
	groupID := c.Query("group_id")
	if groupID == "" {
		respond.BadRequest(c, "group_id is required")
		return
	}
	m, err := s.groups.JoinGroup(c.Request.Context(), actor(c), groupID)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := s.groups.ListMembers(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) handleUpdateMember(c *gin.Context) {
	var patch service.MemberPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	m, err := s.groups.UpdateMember(c.Request.Context(), actor(c), c.Param("group_id"), c.Query("wallet_address"), patch)
	if err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	if err := s.groups.RemoveMember(c.Request.Context(), actor(c), c.Param("member_id")); err != nil {
		respond.Error(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}
