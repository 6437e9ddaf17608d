package forum

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrimitra/cmd/identity/ids"
)

// PostgresStore implements forum persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Schema/table identifiers are safely quoted to avoid SQL injection via
// identifiers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the forum store (default "agrimitra").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("forum: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("forum: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "agrimitra",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("forum: nil pool")
	}
	return st, nil
}

// CreateQuestion inserts a new question row.
func (s *PostgresStore) CreateQuestion(ctx context.Context, in CreateQuestionInput) (Question, error) {
	const op = "forum.CreateQuestion"

	if s == nil || s.pool == nil {
		return Question{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	questions := pgIdent(s.schema, "forum_questions")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+questions+` (id, author_id, author_name, title, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.AuthorID, q.AuthorName, q.Title, q.Text, q.CreatedAt,
	)
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

// ListQuestions returns up to limit questions, newest first, answers embedded.
func (s *PostgresStore) ListQuestions(ctx context.Context, limit int) ([]Question, error) {
	const op = "forum.ListQuestions"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	questions := pgIdent(s.schema, "forum_questions")
	return s.queryQuestions(ctx,
		`SELECT id, author_id, author_name, title, body, created_at
		   FROM `+questions+`
		  ORDER BY id DESC
		  LIMIT $1`,
		pgLimit(limit),
	)
}

// SearchQuestions returns questions whose title or body contains query,
// case-insensitively, newest first.
func (s *PostgresStore) SearchQuestions(ctx context.Context, query string, limit int) ([]Question, error) {
	const op = "forum.SearchQuestions"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	needle := strings.TrimSpace(query)
	if needle == "" {
		return s.ListQuestions(ctx, limit)
	}

	questions := pgIdent(s.schema, "forum_questions")
	return s.queryQuestions(ctx,
		`SELECT id, author_id, author_name, title, body, created_at
		   FROM `+questions+`
		  WHERE title ILIKE $1 OR body ILIKE $1
		  ORDER BY id DESC
		  LIMIT $2`,
		pgContainsPattern(needle), pgLimit(limit),
	)
}

// GetQuestion fetches one question with its answers.
func (s *PostgresStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	const op = "forum.GetQuestion"

	if s == nil || s.pool == nil {
		return Question{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Question{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing question id"}
	}

	questions := pgIdent(s.schema, "forum_questions")

	var q Question
	err := s.pool.QueryRow(ctx,
		`SELECT id, author_id, author_name, title, body, created_at
		   FROM `+questions+`
		  WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.AuthorID, &q.AuthorName, &q.Title, &q.Text, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Question{}, NotFoundError{Op: op, Resource: "question"}
		}
		return Question{}, err
	}

	if err := s.attachAnswers(ctx, []*Question{&q}); err != nil {
		return Question{}, err
	}
	return q, nil
}

// CreateAnswer inserts a new answer row under an existing question.
func (s *PostgresStore) CreateAnswer(ctx context.Context, in CreateAnswerInput) (Answer, error) {
	const op = "forum.CreateAnswer"

	if s == nil || s.pool == nil {
		return Answer{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	a := Answer{
		ID:         id,
		QuestionID: strings.TrimSpace(in.QuestionID),
		AuthorID:   strings.TrimSpace(in.AuthorID),
		AuthorName: strings.TrimSpace(in.AuthorName),
		Text:       strings.TrimSpace(in.Text),
		CreatedAt:  now,
	}

	answers := pgIdent(s.schema, "forum_answers")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+answers+` (id, question_id, author_id, author_name, body, upvotes, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		a.ID, a.QuestionID, a.AuthorID, a.AuthorName, a.Text, a.CreatedAt,
	)
	if err != nil {
		// FK violation means the question is gone.
		if pgIsForeignKeyViolation(err) {
			return Answer{}, NotFoundError{Op: op, Resource: "question"}
		}
		return Answer{}, err
	}
	return a, nil
}

// LikeAnswer atomically increments an answer's upvote count.
func (s *PostgresStore) LikeAnswer(ctx context.Context, answerID string) (Answer, error) {
	const op = "forum.LikeAnswer"

	if s == nil || s.pool == nil {
		return Answer{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	answerID = strings.TrimSpace(answerID)
	if answerID == "" {
		return Answer{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing answer id"}
	}

	answers := pgIdent(s.schema, "forum_answers")

	var a Answer
	err := s.pool.QueryRow(ctx,
		`UPDATE `+answers+`
		    SET upvotes = upvotes + 1
		  WHERE id = $1
		  RETURNING id, question_id, author_id, author_name, body, upvotes, created_at`,
		answerID,
	).Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.AuthorName, &a.Text, &a.Upvotes, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Answer{}, NotFoundError{Op: op, Resource: "answer"}
		}
		return Answer{}, err
	}
	return a, nil
}

// ---- helpers ----

func (s *PostgresStore) queryQuestions(ctx context.Context, sql string, args ...any) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.AuthorID, &q.AuthorName, &q.Title, &q.Text, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachAnswers(ctx, out); err != nil {
		return nil, err
	}

	res := make([]Question, 0, len(out))
	for _, q := range out {
		res = append(res, *q)
	}
	return res, nil
}

// attachAnswers loads all answers for the given questions in one query and
// embeds them oldest first.
func (s *PostgresStore) attachAnswers(ctx context.Context, qs []*Question) error {
	if len(qs) == 0 {
		return nil
	}

	byID := make(map[string]*Question, len(qs))
	idList := make([]string, 0, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
		idList = append(idList, q.ID)
	}

	answers := pgIdent(s.schema, "forum_answers")
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, author_id, author_name, body, upvotes, created_at
		   FROM `+answers+`
		  WHERE question_id = ANY($1)
		  ORDER BY id ASC`,
		idList,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.AuthorName, &a.Text, &a.Upvotes, &a.CreatedAt); err != nil {
			return err
		}
		if q, ok := byID[a.QuestionID]; ok {
			q.Answers = append(q.Answers, a)
		}
	}
	return rows.Err()
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// pgLimit clamps a caller-provided list limit to a sane positive value.
func pgLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}

// pgContainsPattern builds a case-insensitive substring ILIKE pattern,
// escaping LIKE metacharacters in the user's query.
func pgContainsPattern(needle string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(needle) + "%"
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.SQLState() == "23503"
}
