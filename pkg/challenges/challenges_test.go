package challenges

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProviderIsDeterministic(t *testing.T) {
	a := NewStaticProvider(7)
	b := NewStaticProvider(7)

	for id := 1; id <= 20; id++ {
		pa, err := a.GetByID(id)
		require.NoError(t, err)
		pb, err := b.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, pa, pb, "same seed and id produce the same challenge")
	}

	other := NewStaticProvider(8)
	po, err := other.GetByID(1)
	require.NoError(t, err)
	pa, err := a.GetByID(1)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Prompt+pa.Options[0], po.Prompt+po.Options[0],
		"different seeds diverge")
}

func TestValidateAnswer(t *testing.T) {
	p := NewStaticProvider(1)

	for id := 1; id <= 10; id++ {
		correct := p.CorrectAnswer(id)
		ok, err := p.ValidateAnswer(id, correct)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.ValidateAnswer(id, (correct+1)%4)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	_, err := p.ValidateAnswer(-1, 0)
	require.Error(t, err)
}

func TestChallengeShape(t *testing.T) {
	p := NewStaticProvider(1)
	payload, err := p.GetByID(5)
	require.NoError(t, err)

	assert.Equal(t, 5, payload.ID)
	assert.NotEmpty(t, payload.Prompt)
	require.Len(t, payload.Options, 4)
	seen := make(map[string]bool)
	for _, option := range payload.Options {
		assert.NotEmpty(t, option)
		seen[option] = true
	}
	assert.Contains(t, payload.Options, payload.Options[p.CorrectAnswer(5)])
}
