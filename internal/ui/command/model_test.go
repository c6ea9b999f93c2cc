package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want CommandMsg
	}{
		{"refresh", CommandMsg{Verb: VerbRefresh}},
		{"  SYNC ", CommandMsg{Verb: VerbRefresh}},
		{"ra", CommandMsg{Verb: VerbReadAll}},
		{"filter unread", CommandMsg{Verb: VerbFilter, Filter: model.FilterUnread}},
		{"f Social", CommandMsg{Verb: VerbFilter, Filter: model.FilterSocial}},
		{"q", CommandMsg{Verb: VerbQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "open", "filter", "filter bogus", "refresh now"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(60, 10)
	m.Focus()
	for _, r := range "retry" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Verb: VerbRetry}, cmd())
	assert.Empty(t, m.input.Value())
}

func TestEnterKeepsInvalidInput(t *testing.T) {
	m := New(60, 10)
	m.Focus()
	for _, r := range "nope" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "nope", m.input.Value())
	assert.Contains(t, m.View(), "unknown command")
}
