package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

func typeText(m *model, text string) *model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(*model)
	}
	return m
}

func TestModelSubmitValidISBN(t *testing.T) {
	m := typeText(newModel(), "978-0-306-40615-7")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(*model)

	require.NotNil(t, cmd)
	assert.Equal(t, ActionSubmitted, m.result.Action)
	assert.Equal(t, "9780306406157", m.result.ISBN)
}

func TestModelRejectsInvalidISBN(t *testing.T) {
	m := typeText(newModel(), "12345")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(*model)

	assert.Nil(t, cmd)
	assert.Equal(t, ActionNone, m.result.Action)
	assert.Contains(t, m.View(), "Not a valid ISBN-13")

	m = typeText(m, "6")
	assert.Empty(t, m.err, "typing clears the error")
	assert.Contains(t, m.View(), "6/13 digits")
}

func TestModelCancel(t *testing.T) {
	next, cmd := newModel().Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, ActionCancelled, next.(*model).result.Action)
}

func TestPromptISBN(t *testing.T) {
	orig := runProgram
	t.Cleanup(func() { runProgram = orig })

	t.Run("submitted", func(t *testing.T) {
		runProgram = func(m tea.Model) (tea.Model, error) {
			typed := m.(*model)
			typed.result = PromptResult{Action: ActionSubmitted, ISBN: "9780306406157"}
			return typed, nil
		}
		got, err := PromptISBN()
		require.NoError(t, err)
		assert.Equal(t, "9780306406157", got)
	})

	t.Run("cancelled", func(t *testing.T) {
		runProgram = func(m tea.Model) (tea.Model, error) {
			typed := m.(*model)
			typed.result = PromptResult{Action: ActionCancelled}
			return typed, nil
		}
		_, err := PromptISBN()
		assert.True(t, errors.IsStopProcessingError(err))
	})
}
