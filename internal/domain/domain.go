package domain

import (
	"time"
)

// NoWinner is reported to the terminal notification when a session ends with an empty leaderboard.
const NoWinner = "Unknown"

// Quiz is an immutable, validated sequence of questions.
type Quiz struct {
	QuizID     string     `json:"quizId"`
	Questions  []Question `json:"questions"`
	CreateTime time.Time  `json:"createTime"`
}

type Question struct {
	Question      string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer int      `json:"correctAnswer"`
	Time          Timing   `json:"time"`
}

// Timing holds the question and answering durations, in seconds.
type Timing struct {
	QuestionDuration  int `json:"questionDuration"`
	AnsweringDuration int `json:"answeringDuration"`
}

// State is the lifecycle state of a session.
type State int

const (
	StateLobby State = iota
	StateInQuestion
	StateRevealed
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateInQuestion:
		return "in_question"
	case StateRevealed:
		return "revealed"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SessionInfo is a read-only view of a session.
type SessionInfo struct {
	SessionID            string             `json:"sessionId"`
	Code                 string             `json:"code"`
	QuizID               string             `json:"quizId"`
	State                string             `json:"state"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	Score                int64              `json:"score"`
	Participants         []Participant      `json:"participants"`
	Leaderboard          []LeaderboardEntry `json:"leaderboard"`
}

type Participant struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Answers       []int  `json:"answers"`
}

// LeaderboardEntry is a participant's cumulative score within a session.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int64  `json:"score"`
}
