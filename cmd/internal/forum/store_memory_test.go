package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_QuestionLifecycle(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	q1, err := s.CreateQuestion(ctx, CreateQuestionInput{
		AuthorID:   "acc-1",
		AuthorName: "farmer1",
		Title:      "Yellowing leaves on tomato plants",
		Text:       "The lower leaves turn yellow after two weeks. What should I check?",
		Now:        base,
	})
	require.NoError(t, err)

	q2, err := s.CreateQuestion(ctx, CreateQuestionInput{
		AuthorID:   "acc-2",
		AuthorName: "farmer2",
		Title:      "Best sowing window for wheat",
		Text:       "Is mid-November too late in the north?",
		Now:        base.Add(time.Hour),
	})
	require.NoError(t, err)

	list, err := s.ListQuestions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, q2.ID, list[0].ID)
	assert.Equal(t, q1.ID, list[1].ID)

	got, err := s.GetQuestion(ctx, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.Title, got.Title)
	assert.Empty(t, got.Answers)

	_, err = s.GetQuestion(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

// Not parallel: same-millisecond ID ordering relies on consecutive mints
// from the process-wide monotonic ULID source.
func TestMemoryStore_ListOrder_SameMillisecond(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	// ULID timestamps carry millisecond precision, so rapid consecutive
	// posts share a timestamp prefix. Creation order must still hold.
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var created []Question
	for i := 0; i < 20; i++ {
		q, err := s.CreateQuestion(ctx, CreateQuestionInput{
			AuthorID: "acc-1",
			Title:    "Question " + string(rune('a'+i)),
			Text:     "body",
			Now:      at,
		})
		require.NoError(t, err)
		created = append(created, q)
	}

	list, err := s.ListQuestions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, len(created))
	for i := range list {
		assert.Equal(t, created[len(created)-1-i].ID, list[i].ID,
			"position %d should hold the %d-th newest question", i, i)
	}
}

func TestMemoryStore_SearchQuestions(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, in := range []CreateQuestionInput{
		{AuthorID: "acc-1", Title: "Tomato blight treatment", Text: "Spots on leaves after rain."},
		{AuthorID: "acc-1", Title: "Drip irrigation spacing", Text: "For TOMATO rows."},
		{AuthorID: "acc-2", Title: "Wheat rust", Text: "Orange pustules on stems."},
	} {
		in.Now = base.Add(time.Duration(i) * time.Minute)
		_, err := s.CreateQuestion(ctx, in)
		require.NoError(t, err)
	}

	// Case-insensitive over both title and text.
	hits, err := s.SearchQuestions(ctx, "tomato", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.SearchQuestions(ctx, "RUST", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Wheat rust", hits[0].Title)

	// Empty query behaves as a plain list.
	hits, err = s.SearchQuestions(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestMemoryStore_AnswersAndLikes(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	q, err := s.CreateQuestion(ctx, CreateQuestionInput{
		AuthorID: "acc-1", AuthorName: "farmer1",
		Title: "Stem borer in paddy", Text: "Dead hearts visible in patches.",
		Now: base,
	})
	require.NoError(t, err)

	a1, err := s.CreateAnswer(ctx, CreateAnswerInput{
		QuestionID: q.ID, AuthorID: "acc-2", AuthorName: "farmer2",
		Text: "Install pheromone traps and remove affected tillers.",
		Now:  base.Add(time.Minute),
	})
	require.NoError(t, err)

	a2, err := s.CreateAnswer(ctx, CreateAnswerInput{
		QuestionID: q.ID, AuthorID: "acc-3", AuthorName: "farmer3",
		Text: "Avoid late nitrogen application.",
		Now:  base.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	// Answers come back embedded, oldest first.
	got, err := s.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 2)
	assert.Equal(t, a1.ID, got.Answers[0].ID)
	assert.Equal(t, a2.ID, got.Answers[1].ID)

	// Upvotes accumulate.
	liked, err := s.LikeAnswer(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Upvotes)

	liked, err = s.LikeAnswer(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, liked.Upvotes)

	_, err = s.LikeAnswer(ctx, "missing")
	assert.True(t, IsNotFound(err))

	// Answering a missing question fails.
	_, err = s.CreateAnswer(ctx, CreateAnswerInput{
		QuestionID: "missing", AuthorID: "acc-2", Text: "hello",
	})
	assert.True(t, IsNotFound(err))
}

func TestValidateQuestion(t *testing.T) {
	t.Parallel()

	long := make([]byte, TextMaxLen+1)
	for i := range long {
		long[i] = 'x'
	}

	assert.NoError(t, ValidateQuestion("t", "body"))
	assert.True(t, IsInvalidInput(ValidateQuestion("", "body")))
	assert.True(t, IsInvalidInput(ValidateQuestion("t", "")))
	assert.True(t, IsInvalidInput(ValidateQuestion("t", string(long))))
	assert.True(t, IsInvalidInput(ValidateAnswer("")))
	assert.True(t, IsInvalidInput(ValidateAnswer(string(long))))
}
