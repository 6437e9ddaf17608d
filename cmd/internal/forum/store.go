package forum

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// Question is a community question with its answers embedded.
type Question struct {
	ID         string
	AuthorID   string
	AuthorName string
	Title      string
	Text       string
	CreatedAt  time.Time

	Answers []Answer
}

// Answer is a reply to a question. Upvotes only ever increase.
type Answer struct {
	ID         string
	QuestionID string
	AuthorID   string
	AuthorName string
	Text       string
	Upvotes    int
	CreatedAt  time.Time
}

// Content limits. Enforced in ValidateQuestion/ValidateAnswer before any
// store call; stores re-check only structural emptiness.
const (
	TitleMaxLen = 200
	TextMaxLen  = 5000
)

// CreateQuestionInput describes a new question post.
type CreateQuestionInput struct {
	AuthorID   string
	AuthorName string
	Title      string
	Text       string
	Now        time.Time
}

// CreateAnswerInput describes a new answer post.
type CreateAnswerInput struct {
	QuestionID string
	AuthorID   string
	AuthorName string
	Text       string
	Now        time.Time
}

// Store is the Q&A persistence boundary. Listing returns questions newest
// first with answers embedded (answers ordered oldest first, the reading
// order of a thread).
type Store interface {
	CreateQuestion(ctx context.Context, in CreateQuestionInput) (Question, error)
	ListQuestions(ctx context.Context, limit int) ([]Question, error)
	SearchQuestions(ctx context.Context, query string, limit int) ([]Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)

	CreateAnswer(ctx context.Context, in CreateAnswerInput) (Answer, error)
	LikeAnswer(ctx context.Context, answerID string) (Answer, error)
}

// ValidateQuestion checks a question's title and text against content limits.
func ValidateQuestion(title, text string) error {
	const op = "forum.ValidateQuestion"

	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	switch {
	case title == "":
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "title is required"}
	case utf8.RuneCountInString(title) > TitleMaxLen:
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "title is too long"}
	case text == "":
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "text is required"}
	case utf8.RuneCountInString(text) > TextMaxLen:
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "text is too long"}
	}
	return nil
}

// ValidateAnswer checks an answer's text against content limits.
func ValidateAnswer(text string) error {
	const op = "forum.ValidateAnswer"

	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "text is required"}
	case utf8.RuneCountInString(text) > TextMaxLen:
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "text is too long"}
	}
	return nil
}
