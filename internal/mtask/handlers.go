package mtask

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
	rg.GET("/projects/:id/tasks", h.listByProject)

	tasks := rg.Group("/tasks")
	{
		tasks.POST("", h.create)
		tasks.GET("", h.listMine)
		tasks.GET("/:id", h.get)
		tasks.PUT("/:id", h.update)
		tasks.PATCH("/:id/status", h.updateStatus)
		tasks.DELETE("/:id", h.delete)

		tasks.POST("/:id/comments", h.addComment)
		tasks.DELETE("/:id/comments/:commentId", h.deleteComment)
	}
}

func listQuery(c *gin.Context) ListQuery {
	return ListQuery{
		Status:   c.Query("status"),
		Assignee: c.Query("assignee"),
		Order:    c.DefaultQuery("order", "created_desc"),
		Limit:    httpx.Limit(c, 50),
	}
}

func (h *Handler) listByProject(c *gin.Context) {
	q := listQuery(c)
	items, err := h.svc.ListByProject(c.Request.Context(), authmw.ActorID(c), c.Param("id"), q)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"tasks": items, "count": len(items), "order": q.Order, "status": q.Status})
}

func (h *Handler) listMine(c *gin.Context) {
	q := listQuery(c)
	items, err := h.svc.ListMine(c.Request.Context(), authmw.ActorID(c), q)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"tasks": items, "count": len(items), "order": q.Order, "status": q.Status})
}

func (h *Handler) create(c *gin.Context) {
	var req CreateTaskRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	task, err := h.svc.Create(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"task": task})
}

func (h *Handler) get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), authmw.ActorID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"task": task})
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateTaskRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	task, err := h.svc.Update(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"task": task})
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	task, err := h.svc.UpdateStatus(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req.Status)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"task": task})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "task deleted"})
}

func (h *Handler) addComment(c *gin.Context) {
	var req CreateCommentRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"comment": comment})
}

func (h *Handler) deleteComment(c *gin.Context) {
	if err := h.svc.DeleteComment(c.Request.Context(), authmw.ActorID(c), c.Param("id"), c.Param("commentId")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "comment deleted"})
}
