package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/quiz"
)

// Register mounts the HTTP and WebSocket routes.
func (a *API) Register(e *gin.Engine) {
	e.Use(cors.New(a.corsConfig()))

	e.POST("/quizzes", a.createQuiz)
	e.GET("/quizzes", a.listQuizzes)

	e.GET("/sessions", a.listSessions)
	e.POST("/sessions", a.createSession)
	e.POST("/sessions/join", a.joinSession)
	e.GET("/sessions/:id/leaderboard", a.getLeaderboard)
	e.POST("/sessions/:id/notify", a.notifyWinner)

	e.GET("/ws", a.serveWS)

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
}

func (a *API) corsConfig() cors.Config {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}

	if len(a.origins) == 0 || slices.Contains(a.origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = a.origins
	}

	return c
}

func (a *API) createQuiz(c *gin.Context) {
	var req quiz.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Validation(err.Error()))
		return
	}

	q, err := a.qs.CreateQuiz(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Quiz created successfully",
		"quizId":  q.QuizID,
	})
}

func (a *API) listQuizzes(c *gin.Context) {
	qs, err := a.qs.ListQuizzes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, qs)
}

func (a *API) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, a.registry.List())
}

type createSessionRequest struct {
	QuizID string `json:"quizId"`
}

func (a *API) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Validation(err.Error()))
		return
	}

	s, err := a.registry.Create(c.Request.Context(), req.QuizID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": s.ID(),
		"code":      s.Code(),
	})
}

type joinSessionRequest struct {
	// SessionID is a session ID or a join code.
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

func (a *API) joinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Validation(err.Error()))
		return
	}

	if req.Name == "" || req.SessionID == "" {
		writeError(c, errors.Validation("name and sessionId are required"))
		return
	}

	s, err := a.registry.Resolve(req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	id, err := s.Join(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "User registered successfully!",
		"participantId": id,
		"sessionId":     s.ID(),
	})
}

func (a *API) getLeaderboard(c *gin.Context) {
	s, err := a.registry.Resolve(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":   s.ID(),
		"leaderboard": toLeaderboard(s.Leaderboard()),
	})
}

func (a *API) notifyWinner(c *gin.Context) {
	if err := a.NotifyWinner(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Webhook triggered"})
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)

	msg := e.Message
	if e.Code == errors.CodeInternal {
		_ = c.Error(err)
		msg = "Internal Server Error"
	}

	body := gin.H{"error": msg}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}

	c.JSON(e.HTTPStatusCode(), body)
}
