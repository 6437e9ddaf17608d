package forum

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agrimitra/cmd/identity/ids"
)

// MemoryStore is a dev/test fallback when a database is not configured.
type MemoryStore struct {
	mu        sync.Mutex
	questions map[string]*Question
	answers   map[string]*Answer // answer id -> answer
}

// NewMemoryStore constructs an empty in-memory forum store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[string]*Question),
		answers:   make(map[string]*Answer),
	}
}

// CreateQuestion stores a new question.
func (s *MemoryStore) CreateQuestion(ctx context.Context, in CreateQuestionInput) (Question, error) {
	const op = "forum.CreateQuestion"

	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	if strings.TrimSpace(in.AuthorID) == "" {
		return Question{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing author id"}
	}
	if err := ValidateQuestion(in.Title, in.Text); err != nil {
		return Question{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Question{}, err
	}

	q := Question{
		ID:         id,
		AuthorID:   strings.TrimSpace(in.AuthorID),
		AuthorName: strings.TrimSpace(in.AuthorName),
		Title:      strings.TrimSpace(in.Title),
		Text:       strings.TrimSpace(in.Text),
		CreatedAt:  now,
	}

	s.mu.Lock()
	s.questions[id] = &q
	s.mu.Unlock()

	return q, nil
}

// ListQuestions returns up to limit questions, newest first.
func (s *MemoryStore) ListQuestions(ctx context.Context, limit int) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectLocked(limit, func(*Question) bool { return true }), nil
}

// SearchQuestions returns questions whose title or text contains query,
// case-insensitively, newest first.
func (s *MemoryStore) SearchQuestions(ctx context.Context, query string, limit int) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return s.ListQuestions(ctx, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectLocked(limit, func(q *Question) bool {
		return strings.Contains(strings.ToLower(q.Title), needle) ||
			strings.Contains(strings.ToLower(q.Text), needle)
	}), nil
}

// GetQuestion fetches one question with its answers.
func (s *MemoryStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	const op = "forum.GetQuestion"

	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Question{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing question id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, NotFoundError{Op: op, Resource: "question"}
	}
	return s.cloneLocked(q), nil
}

// CreateAnswer stores a new answer under an existing question.
func (s *MemoryStore) CreateAnswer(ctx context.Context, in CreateAnswerInput) (Answer, error) {
	const op = "forum.CreateAnswer"

	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	if strings.TrimSpace(in.AuthorID) == "" {
		return Answer{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing author id"}
	}
	if err := ValidateAnswer(in.Text); err != nil {
		return Answer{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Answer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	qid := strings.TrimSpace(in.QuestionID)
	if _, ok := s.questions[qid]; !ok {
		return Answer{}, NotFoundError{Op: op, Resource: "question"}
	}

	a := Answer{
		ID:         id,
		QuestionID: qid,
		AuthorID:   strings.TrimSpace(in.AuthorID),
		AuthorName: strings.TrimSpace(in.AuthorName),
		Text:       strings.TrimSpace(in.Text),
		CreatedAt:  now,
	}
	s.answers[id] = &a

	return a, nil
}

// LikeAnswer increments an answer's upvote count and returns the result.
func (s *MemoryStore) LikeAnswer(ctx context.Context, answerID string) (Answer, error) {
	const op = "forum.LikeAnswer"

	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	answerID = strings.TrimSpace(answerID)
	if answerID == "" {
		return Answer{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing answer id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.answers[answerID]
	if !ok {
		return Answer{}, NotFoundError{Op: op, Resource: "answer"}
	}
	a.Upvotes++
	return *a, nil
}

// collectLocked gathers matching questions newest first, answers embedded.
// Caller must hold s.mu.
func (s *MemoryStore) collectLocked(limit int, match func(*Question) bool) []Question {
	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		if match(q) {
			out = append(out, s.cloneLocked(q))
		}
	}
	// IDs are monotonic ULIDs, so id order doubles as creation order
	// even for questions minted in the same millisecond.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cloneLocked copies a question and attaches its answers oldest first.
// Caller must hold s.mu.
func (s *MemoryStore) cloneLocked(q *Question) Question {
	cp := *q
	cp.Answers = nil
	for _, a := range s.answers {
		if a.QuestionID == q.ID {
			cp.Answers = append(cp.Answers, *a)
		}
	}
	sort.Slice(cp.Answers, func(i, j int) bool { return cp.Answers[i].ID < cp.Answers[j].ID })
	return cp
}
