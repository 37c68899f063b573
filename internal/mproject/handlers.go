package mproject

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
	projects := rg.Group("/projects")
	{
		projects.POST("", h.create)
		projects.GET("", h.list)
		projects.GET("/:id", h.get)
		projects.PUT("/:id", h.update)
		projects.DELETE("/:id", h.delete)
		projects.GET("/:id/activities", h.activities)

		projects.POST("/:id/members", h.addMember)
		projects.PUT("/:id/members/:userId", h.changeRole)
		projects.DELETE("/:id/members/:userId", h.removeMember)
	}
}

func (h *Handler) create(c *gin.Context) {
	var req CreateProjectRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	project, err := h.svc.Create(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"project": project})
}

func (h *Handler) list(c *gin.Context) {
	projects, err := h.svc.List(c.Request.Context(), authmw.ActorID(c), ListQuery{
		TeamID: c.Query("team"),
		Limit:  httpx.Limit(c, 50),
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

func (h *Handler) get(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), authmw.ActorID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"project": project})
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateProjectRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	project, err := h.svc.Update(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"project": project})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "project deleted"})
}

func (h *Handler) activities(c *gin.Context) {
	acts, err := h.svc.Activities(c.Request.Context(), authmw.ActorID(c), c.Param("id"), httpx.Limit(c, 50))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"activities": acts, "count": len(acts)})
}

func (h *Handler) addMember(c *gin.Context) {
	var req AddProjectMemberRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	project, err := h.svc.AddMember(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"project": project})
}

func (h *Handler) changeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	project, err := h.svc.ChangeMemberRole(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("userId"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"project": project})
}

func (h *Handler) removeMember(c *gin.Context) {
	project, err := h.svc.RemoveMember(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"project": project})
}
