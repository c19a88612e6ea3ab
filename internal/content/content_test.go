package content

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/newcomer/internal/member"
)

func TestRender_FillsPlaceholders(t *testing.T) {
	p := NewTemplatePresenter("Gophers", []string{"general", "#off-topic"})

	for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
		rec := member.New(id, "alice", time.Now())
		for _, kind := range []string{"retention", "encouragement", "none"} {
			msg, err := p.Render(rec, kind)
			require.NoError(t, err)
			assert.NotEmpty(t, msg.Title)
			assert.NotEmpty(t, msg.CallToAction)
			assert.NotContains(t, msg.Body, "{")
			assert.NotEmpty(t, msg.Emojis)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	p := NewTemplatePresenter("Gophers", nil)
	rec := member.New("u42", "bob", time.Now())

	first, _ := p.Render(rec, "retention")
	for i := 0; i < 10; i++ {
		again, _ := p.Render(rec, "retention")
		assert.Equal(t, first, again)
	}
}

func TestRender_UnknownKindUsesDefault(t *testing.T) {
	p := NewTemplatePresenter("Gophers", nil)
	msg, err := p.Render(member.New("u1", "carol", time.Now()), "mystery")

	require.NoError(t, err)
	assert.Equal(t, "Welcome back!", msg.Title)
	assert.Contains(t, msg.Body, "Gophers")
}

func TestRender_CustomTemplates(t *testing.T) {
	p := NewTemplatePresenter("Gophers", []string{"lobby"}).WithTemplates(map[string][]Template{
		"RETENTION": {{Title: "Hi {name}", Body: "Join us in {channels} on {server}", CallToAction: "Go"}},
	})

	msg, err := p.Render(member.New("u1", "dana", time.Now()), "retention")
	require.NoError(t, err)
	assert.Equal(t, "Hi dana", msg.Title)
	assert.Equal(t, "Join us in #lobby on Gophers", msg.Body)

	fallback, _ := p.Render(member.New("u1", "dana", time.Now()), "encouragement")
	assert.Equal(t, "Welcome back!", fallback.Title)
}

func TestJoinChannels(t *testing.T) {
	assert.Equal(t, "the general chat", joinChannels(nil))
	assert.Equal(t, "#a or #b", joinChannels([]string{"a", " #b ", ""}))
	assert.False(t, strings.HasPrefix(joinChannels([]string{"##x"}), "###"))
}
