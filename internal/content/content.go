// Package content renders outreach messages from local templates.
package content

import (
	"hash/fnv"
	"strings"

	"github.com/lazypower/newcomer/internal/member"
)

// Message is a rendered outreach message, ready for a platform bridge to draw.
type Message struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	CallToAction string   `json:"call_to_action"`
	Action       string   `json:"action"`
	Emojis       []string `json:"emojis"`
	Tone         string   `json:"tone"`
}

// Template is an unrendered message. Body may contain the placeholders
// {name}, {server} and {channels}.
type Template struct {
	Title        string
	Body         string
	CallToAction string
	Action       string
	Emojis       []string
	Tone         string
}

const defaultCategory = "default"

var builtinTemplates = map[string][]Template{
	"retention": {
		{
			Title:        "We miss you!",
			Body:         "It's been a little while since we saw you around **{server}**. Everything okay? If you need a hand or just want to chat, we're here. Come say hi in {channels}.",
			CallToAction: "Back to the chat",
			Action:       "open_chat",
			Emojis:       []string{"👋", "💜"},
			Tone:         "warm",
		},
		{
			Title:        "The chat is buzzing!",
			Body:         "Hey {name}, there are some great conversations going on in **{server}** right now. Why not drop by {channels} and say hello?",
			CallToAction: "Go to the chat",
			Action:       "open_chat",
			Emojis:       []string{"🔥", "💬"},
			Tone:         "excited",
		},
	},
	"encouragement": {
		{
			Title:        "We've seen you around!",
			Body:         "Great to see you exploring the channels, {name}! If you'd like to get to know people, {channels} is the best place to start.",
			CallToAction: "Say hi",
			Action:       "say_hi",
			Emojis:       []string{"👀", "✨"},
			Tone:         "friendly",
		},
		{
			Title:        "Enjoyed the call?",
			Body:         "Looks like you stopped by the voice channels. The folks at **{server}** love hanging out there. Come back any time!",
			CallToAction: "See voice channels",
			Action:       "show_voice",
			Emojis:       []string{"🎙️", "🔊"},
			Tone:         "casual",
		},
	},
	defaultCategory: {
		{
			Title:        "Welcome back!",
			Body:         "We hope you're enjoying **{server}**. If you have any questions, just ask.",
			CallToAction: "Explore",
			Action:       "show_tips",
			Emojis:       []string{"👋", "🌟"},
			Tone:         "neutral",
		},
	},
}

// TemplatePresenter renders messages from a fixed template set. The same
// member always gets the same template for a given kind.
type TemplatePresenter struct {
	server    string
	channels  string
	templates map[string][]Template
}

// NewTemplatePresenter creates a presenter for the named server. channels
// are the public chat channels suggested to the member.
func NewTemplatePresenter(server string, channels []string) *TemplatePresenter {
	return &TemplatePresenter{
		server:    server,
		channels:  joinChannels(channels),
		templates: builtinTemplates,
	}
}

// WithTemplates replaces the template set. A set without a "default"
// category keeps the built-in default.
func (p *TemplatePresenter) WithTemplates(t map[string][]Template) *TemplatePresenter {
	merged := make(map[string][]Template, len(t)+1)
	merged[defaultCategory] = builtinTemplates[defaultCategory]
	for k, v := range t {
		if len(v) > 0 {
			merged[strings.ToLower(k)] = v
		}
	}
	p.templates = merged
	return p
}

// Render fills the template chosen for kind. Unknown kinds use the default set.
func (p *TemplatePresenter) Render(rec member.Record, kind string) (Message, error) {
	options, ok := p.templates[strings.ToLower(kind)]
	if !ok {
		options = p.templates[defaultCategory]
	}
	t := options[pick(rec.ID, len(options))]

	r := strings.NewReplacer(
		"{name}", rec.Name,
		"{server}", p.server,
		"{channels}", p.channels,
	)
	return Message{
		Title:        r.Replace(t.Title),
		Body:         r.Replace(t.Body),
		CallToAction: t.CallToAction,
		Action:       t.Action,
		Emojis:       append([]string(nil), t.Emojis...),
		Tone:         t.Tone,
	}, nil
}

func pick(id string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

func joinChannels(channels []string) string {
	var names []string
	for _, c := range channels {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		names = append(names, "#"+strings.TrimPrefix(c, "#"))
	}
	if len(names) == 0 {
		return "the general chat"
	}
	return strings.Join(names, " or ")
}
