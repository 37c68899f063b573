package mteam

import (
	"net/http"

	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/httpx"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	teams := rg.Group("/teams")
	{
		teams.POST("", h.create)
		teams.GET("", h.list)
		teams.GET("/:id", h.get)
		teams.PUT("/:id", h.update)
		teams.DELETE("/:id", h.delete)

		teams.POST("/:id/members", h.addMember)
		teams.PUT("/:id/members/:userId", h.changeRole)
		teams.DELETE("/:id/members/:userId", h.removeMember)

		teams.POST("/:id/join", h.join)
		teams.DELETE("/:id/join", h.cancelJoin)
		teams.PUT("/:id/requests/:userId", h.handleRequest)
	}
}

func (h *Handler) create(c *gin.Context) {
	var req CreateTeamRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	team, err := h.svc.Create(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"team": team})
}

func (h *Handler) list(c *gin.Context) {
	teams, err := h.svc.List(c.Request.Context(), authmw.ActorID(c), ListQuery{
		Scope: c.Query("scope"),
		Name:  c.Query("name"),
		Limit: httpx.Limit(c, 50),
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"teams": teams, "count": len(teams)})
}

func (h *Handler) get(c *gin.Context) {
	team, err := h.svc.Get(c.Request.Context(), authmw.ActorID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"team": team})
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateTeamRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	team, err := h.svc.Update(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"team": team})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "team deleted"})
}

func (h *Handler) addMember(c *gin.Context) {
	var req AddTeamMemberRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	team, err := h.svc.AddMember(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"team": team})
}

func (h *Handler) changeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	team, err := h.svc.ChangeMemberRole(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("userId"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"team": team})
}

func (h *Handler) removeMember(c *gin.Context) {
	team, err := h.svc.RemoveMember(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"team": team})
}

func (h *Handler) join(c *gin.Context) {
	var req JoinTeamRequest
	// the message is optional, an empty body is fine
	if c.Request.ContentLength > 0 && !httpx.BindJSON(c, &req) {
		return
	}

	team, joined, err := h.svc.Join(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	if joined {
		httpx.OK(c, http.StatusOK, gin.H{"message": "joined team", "team": team})
		return
	}
	httpx.OK(c, http.StatusAccepted, gin.H{"message": "join request sent", "team": team})
}

func (h *Handler) cancelJoin(c *gin.Context) {
	if err := h.svc.CancelJoinRequest(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "join request cancelled"})
}

func (h *Handler) handleRequest(c *gin.Context) {
	var req HandleJoinRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	team, err := h.svc.HandleJoinRequest(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("userId"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "join request " + req.Action + "ed", "team": team})
}
