package feed

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
	posts := rg.Group("/posts")
	{
		posts.POST("", h.createPost)
		posts.GET("", h.listPosts)
		posts.GET("/:id", h.getPost)
		posts.DELETE("/:id", h.deletePost)
		posts.POST("/:id/like", h.toggleLike)
		posts.POST("/:id/comments", h.commentPost)
		posts.POST("/:id/share", h.sharePost)
	}

	chats := rg.Group("/chats")
	{
		chats.POST("", h.createChat)
		chats.GET("", h.listChats)
		chats.GET("/:id", h.getChat)
		chats.GET("/:id/messages", h.listMessages)
		chats.POST("/:id/messages", h.sendMessage)
		chats.POST("/:id/participants", h.addParticipants)
		chats.DELETE("/:id/participants/me", h.leaveChat)
	}
}

func (h *Handler) createPost(c *gin.Context) {
	var req CreatePostRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"post": post})
}

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.svc.ListPosts(c.Request.Context(), c.Query("author"), httpx.Limit(c, 50))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.svc.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"post": post})
}

func (h *Handler) deletePost(c *gin.Context) {
	if err := h.svc.DeletePost(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "post deleted"})
}

func (h *Handler) toggleLike(c *gin.Context) {
	post, liked, err := h.svc.ToggleLike(c.Request.Context(), authmw.ActorID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"post": post, "liked": liked, "likes": len(post.Likes)})
}

func (h *Handler) commentPost(c *gin.Context) {
	var req CommentRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	comment, err := h.svc.CommentPost(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"comment": comment})
}

func (h *Handler) sharePost(c *gin.Context) {
	var req SharePostRequest
	if c.Request.ContentLength > 0 && !httpx.BindJSON(c, &req) {
		return
	}

	post, err := h.svc.SharePost(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"post": post})
}

func (h *Handler) createChat(c *gin.Context) {
	var req CreateChatRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	chat, created, err := h.svc.CreateChat(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.OK(c, status, gin.H{"chat": chat})
}

func (h *Handler) listChats(c *gin.Context) {
	chats, err := h.svc.ListChats(c.Request.Context(), authmw.ActorID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"chats": chats, "count": len(chats)})
}

func (h *Handler) getChat(c *gin.Context) {
	chat, err := h.svc.GetChat(c.Request.Context(), authmw.ActorID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"chat": chat})
}

func (h *Handler) listMessages(c *gin.Context) {
	msgs, err := h.svc.ListMessages(c.Request.Context(), authmw.ActorID(c), c.Param("id"), httpx.Limit(c, 50))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"message": msg})
}

func (h *Handler) addParticipants(c *gin.Context) {
	var req ParticipantsRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	chat, err := h.svc.AddParticipants(c.Request.Context(), authmw.ActorID(c), c.Param("id"), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"chat": chat})
}

func (h *Handler) leaveChat(c *gin.Context) {
	if err := h.svc.LeaveChat(c.Request.Context(), authmw.ActorID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "left chat"})
}
