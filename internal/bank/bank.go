package bank

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"telegram-quiz-bot/internal/domain"
)

// Source fetches raw question records from a backing store (file, Postgres).
type Source interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// Bank is an immutable, validated set of questions. Questions are addressed
// by their index in the loaded order.
type Bank struct {
	questions []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

// Load reads all questions from source and validates them. A single bad
// record rejects the whole bank; there is no partial load.
func Load(ctx context.Context, source Source) (*Bank, error) {
	questions, err := source.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", domain.ErrBankMalformed)
	}
	for i, q := range questions {
		if q.Text == "" {
			return nil, fmt.Errorf("%w: question #%d has no text", domain.ErrBankMalformed, i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: question #%d needs 2+ options", domain.ErrBankMalformed, i+1)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("%w: question #%d has correctIndex %d out of range [0,%d)",
				domain.ErrBankMalformed, i+1, q.CorrectIndex, len(q.Options))
		}
	}
	return &Bank{
		questions: questions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Len reports the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Question returns the question at id. id must come from Sample.
func (b *Bank) Question(id int) domain.Question {
	return b.questions[id]
}

// Sample draws k distinct question ids uniformly without replacement.
// k is capped to the bank size.
func (b *Bank) Sample(k int) []int {
	if k > len(b.questions) {
		k = len(b.questions)
	}
	b.mu.Lock()
	perm := b.rnd.Perm(len(b.questions))
	b.mu.Unlock()
	return perm[:k]
}

// ShuffleIDs returns the given ids in a fresh random order.
func (b *Bank) ShuffleIDs(ids []int) []int {
	out := append([]int(nil), ids...)
	b.mu.Lock()
	b.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	b.mu.Unlock()
	return out
}

// Shuffled returns a freshly permuted copy of the question's options and
// the presented correct-option index, i.e. where the correct option landed
// within the permutation. The bank never exposes a fixed option order.
func (b *Bank) Shuffled(id int) (options []string, correctIdx int) {
	q := b.questions[id]
	order := make([]int, len(q.Options))
	for i := range order {
		order[i] = i
	}
	b.mu.Lock()
	b.rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	b.mu.Unlock()

	options = make([]string, len(order))
	for pos, orig := range order {
		options[pos] = q.Options[orig]
		if orig == q.CorrectIndex {
			correctIdx = pos
		}
	}
	return options, correctIdx
}
