package domain

const (
	EventNameLeaderboardUpdated = "winners"
	EventNameQuestionStarted    = "next-question"
	EventNameAnswerRevealed     = "reveal-answer"
	EventNameQuizEnded          = "quiz-ended"
	EventNameInvalidQuiz        = "invalid-quiz-id"
)

// EventNames lists every broadcast a session can emit.
var EventNames = []string{
	EventNameLeaderboardUpdated,
	EventNameQuestionStarted,
	EventNameAnswerRevealed,
	EventNameQuizEnded,
	EventNameInvalidQuiz,
}

type EventLeaderboardUpdated struct {
	SessionID   string
	Leaderboard []LeaderboardEntry
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
func (e EventLeaderboardUpdated) Key() string { return e.SessionID }

// EventQuestionStarted carries the public part of a question, the correct answer is never included.
type EventQuestionStarted struct {
	SessionID string
	Index     int
	Question  string
	Answers   []string
	Time      Timing
}

func (EventQuestionStarted) Name() string { return EventNameQuestionStarted }
func (e EventQuestionStarted) Key() string { return e.SessionID }

type EventAnswerRevealed struct {
	SessionID     string
	Index         int
	CorrectAnswer int
}

func (EventAnswerRevealed) Name() string { return EventNameAnswerRevealed }
func (e EventAnswerRevealed) Key() string { return e.SessionID }

type EventQuizEnded struct {
	SessionID string
	Winner    string
}

func (EventQuizEnded) Name() string { return EventNameQuizEnded }
func (e EventQuizEnded) Key() string { return e.SessionID }

type EventInvalidQuiz struct {
	SessionID string
	QuizID    string
}

func (EventInvalidQuiz) Name() string { return EventNameInvalidQuiz }
func (e EventInvalidQuiz) Key() string { return e.SessionID }
