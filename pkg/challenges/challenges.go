package challenges

import (
	"fmt"
	"math/rand"
)

// Payload is the participant-visible portion of a challenge. The correct
// answer index never leaves the provider.
type Payload struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Provider serves challenge content by id and validates submitted answers.
type Provider interface {
	GetByID(id int) (*Payload, error)
	ValidateAnswer(id int, answerIndex int) (bool, error)
}

// StaticProvider generates a deterministic arithmetic challenge per id.
// The same id always yields the same prompt, options and answer, so a
// lazily requested payload can be validated later without shared state.
type StaticProvider struct {
	seed int64
}

func NewStaticProvider(seed int64) *StaticProvider {
	return &StaticProvider{seed: seed}
}

func (p *StaticProvider) generate(id int) (Payload, int) {
	rng := rand.New(rand.NewSource(p.seed ^ int64(id)*0x9e3779b9))
	a := rng.Intn(12) + 2
	b := rng.Intn(12) + 2
	answer := a * b
	correct := rng.Intn(4)
	options := make([]string, 4)
	for i := range options {
		if i == correct {
			options[i] = fmt.Sprintf("%d", answer)
			continue
		}
		wrong := answer
		for wrong == answer {
			wrong = answer + rng.Intn(21) - 10
		}
		options[i] = fmt.Sprintf("%d", wrong)
	}
	return Payload{
		ID:      id,
		Prompt:  fmt.Sprintf("%d x %d = ?", a, b),
		Options: options,
	}, correct
}

func (p *StaticProvider) GetByID(id int) (*Payload, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid challenge id %d", id)
	}
	payload, _ := p.generate(id)
	return &payload, nil
}

func (p *StaticProvider) ValidateAnswer(id int, answerIndex int) (bool, error) {
	if id < 0 {
		return false, fmt.Errorf("invalid challenge id %d", id)
	}
	_, correct := p.generate(id)
	return answerIndex == correct, nil
}

// CorrectAnswer returns the correct option index for an id. It exists for
// tests and tooling; the session only ever calls ValidateAnswer.
func (p *StaticProvider) CorrectAnswer(id int) int {
	_, correct := p.generate(id)
	return correct
}
