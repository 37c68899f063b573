package feed

type CreatePostRequest struct {
	Content string   `json:"content" binding:"required,min=1,max=5000"`
	Tags    []string `json:"tags"`
}

type SharePostRequest struct {
	Content string `json:"content" binding:"max=5000"`
}

type CommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

// CreateChatRequest opens a direct chat with one participant, or a named
// group chat when IsGroup is set.
type CreateChatRequest struct {
	Participants []string `json:"participants" binding:"required,min=1"`
	Name         string   `json:"name" binding:"max=100"`
	IsGroup      bool     `json:"isGroup"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

type ParticipantsRequest struct {
	Participants []string `json:"participants" binding:"required,min=1"`
}
