package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Devcavi19/adal-4naga-app/chat"
	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/Devcavi19/adal-4naga-app/wire"
	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

type feedbackRequest struct {
	ChatID  string `json:"chat_id"`
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResult struct {
	ID            string                `json:"id"`
	Text          string                `json:"text"`
	Metadata      core.DocumentMetadata `json:"metadata"`
	SemanticScore float64               `json:"semantic_score"`
	KeywordScore  float64               `json:"keyword_score"`
	HybridScore   float64               `json:"hybrid_score"`
}

func (s *Server) health(c *gin.Context) {
	retrievalState := "ready"
	if !s.service.Ready() {
		retrievalState = "not_initialized"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "retrieval": retrievalState})
}

func (s *Server) chat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req := chat.Request{UserID: userID(c), SessionID: body.ChatID, Message: body.Message}

	if err := s.service.Validate(req.Message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	ctx := c.Request.Context()
	session, err := s.service.OpenSession(ctx, req)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.Header("Content-Type", wire.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := s.service.Stream(ctx, session, req.Message, wire.NewEncoder(c.Writer)); err != nil {
		s.logger.Warn("answer stream interrupted", "session", session.ID, "err", err)
	}
}

func (s *Server) search(c *gin.Context) {
	var body searchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := s.service.Search(c.Request.Context(), body.Query, body.K)
	if err != nil {
		s.abort(c, err)
		return
	}

	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{
			ID:            r.ID,
			Text:          r.Text,
			Metadata:      r.Metadata,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
			HybridScore:   r.HybridScore,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}

func (s *Server) history(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sessions, err := s.service.Sessions(c.Request.Context(), userID(c), limit)
	if err != nil {
		s.abort(c, err)
		return
	}
	if sessions == nil {
		sessions = []*core.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) session(c *gin.Context) {
	id := c.Param("id")
	turns, err := s.service.Turns(c.Request.Context(), userID(c), id)
	if err != nil {
		s.abort(c, err)
		return
	}
	if turns == nil {
		turns = []*core.ConversationTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": id, "messages": turns})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.service.DeleteSession(c.Request.Context(), userID(c), id); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully", "chat_id": id})
}

func (s *Server) renameSession(c *gin.Context) {
	var body titleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := s.service.RenameSession(c.Request.Context(), userID(c), c.Param("id"), body.Title)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": session.ID, "title": session.Title})
}

func (s *Server) feedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.ChatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}
	if body.Rating == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be an integer between 1 and 5"})
		return
	}

	_, err := s.service.SubmitFeedback(c.Request.Context(), chat.FeedbackRequest{
		UserID:    userID(c),
		SessionID: body.ChatID,
		Rating:    *body.Rating,
		Comment:   body.Comment,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback submitted successfully"})
}

// abort maps a service error to a JSON error response.
func (s *Server) abort(c *gin.Context, err error) {
	var failure *retrieval.RetrievalFailure
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrContentBlocked):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	case errors.Is(err, chat.ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
	case errors.Is(err, chat.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be an integer between 1 and 5"})
	case errors.Is(err, chat.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
	case errors.Is(err, chat.ErrNoAssistantTurn):
		c.JSON(http.StatusNotFound, gin.H{"error": "No bot message found in this session"})
	case errors.Is(err, chat.ErrFeedbackUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feedback is not available right now"})
	case errors.Is(err, chat.ErrNotInitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not available right now"})
	case errors.As(err, &failure):
		s.logger.Error("search failed", "stage", failure.Stage, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed", "stage": failure.Stage})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func validationMessage(err error) string {
	if errors.Is(err, chat.ErrContentBlocked) {
		return chat.BlockedMessage
	}
	return "Message cannot be empty"
}
