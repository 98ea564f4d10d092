//go:build integration_test

package demo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/domain"
)

const (
	httpAddr = "http://localhost:8080"
	wsAddr   = "ws://localhost:8080/ws"
)

// TestQuiz plays a full quiz against a running server: a host and three players.
func TestQuiz(t *testing.T) {
	var (
		quizID  = createQuiz(t)
		users   = []string{"u1", "u2", "u3"}
		host    = dial(t)
		players = make(map[string]*conn)
		ids     = make(map[string]string)
	)

	ack := host.call(t, api.IntentStartQuiz, api.StartQuiz{QuizID: quizID})
	session := ack.SessionID

	for _, u := range users {
		players[u] = dial(t)
		ids[u] = players[u].call(t, api.IntentJoinQuiz, api.JoinQuiz{SessionID: ack.Code, Name: u}).ParticipantID
	}

	for i := 0; i < 2; i++ {
		host.send(t, api.IntentNextQuestion, api.NextQuestion{SessionID: session})

		// All users answer concurrently, u1 always answers correctly
		var eg errgroup.Group
		for _, u := range users {
			eg.Go(func() error {
				c := players[u]
				c.await(t, domain.EventNameQuestionStarted)

				answer := 1
				if u != "u1" {
					answer = 0
				}
				c.send(t, api.IntentSubmitAnswer, api.SubmitAnswer{SessionID: session, ParticipantID: ids[u], Answer: &answer})
				return nil
			})
		}
		require.NoError(t, eg.Wait())

		host.send(t, api.IntentRevealAnswer, api.RevealAnswer{SessionID: session})
		host.await(t, domain.EventNameAnswerRevealed)
	}

	host.send(t, api.IntentNextQuestion, api.NextQuestion{SessionID: session})
	var ended api.QuizEnded
	require.NoError(t, json.Unmarshal(host.await(t, domain.EventNameQuizEnded), &ended))
	require.Equal(t, "u1", ended.Winner)
}

func createQuiz(t *testing.T) string {
	body := `{"questions":[
		{"question":"q1","answers":["a","b"],"correctAnswer":1},
		{"question":"q2","answers":["a","b","c"],"correctAnswer":1}
	]}`

	resp, err := http.Post(httpAddr+"/quizzes", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		QuizID string `json:"quizId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.QuizID
}

type conn struct {
	ws *websocket.Conn
}

func dial(t *testing.T) *conn {
	ws, _, err := websocket.DefaultDialer.Dial(wsAddr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &conn{ws: ws}
}

func (c *conn) send(t *testing.T, typ string, data any) {
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, c.ws.WriteJSON(api.Envelope{Type: typ, Data: b}))
}

func (c *conn) call(t *testing.T, typ string, data any) api.Ack {
	c.send(t, typ, data)

	var ack api.Ack
	require.NoError(t, json.Unmarshal(c.await(t, api.ReplyAck), &ack))
	return ack
}

func (c *conn) await(t *testing.T, typ string) json.RawMessage {
	_ = c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env api.Envelope
		require.NoError(t, c.ws.ReadJSON(&env))
		if env.Type == api.ReplyError {
			require.FailNow(t, fmt.Sprintf("error reply: %s", env.Data))
		}
		if env.Type == typ {
			return env.Data
		}
	}
}
