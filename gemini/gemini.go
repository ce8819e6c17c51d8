package gemini

import (
	"context"

	"music-bot-go/config"
	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const classifySystemPrompt = `You are a high-precision message classifier for a music bot. Analyze the incoming message and return exactly one valid JSON object, nothing else, with two keys: "type" and "content".

Classification order:
1. "instagram_link": the message is a link to an Instagram post (contains instagram.com/p/ or instagram.com/reel/). content: {"shortcode": "<code from the URL>"}.
2. "music_service_link": the message is a link to a single track on music.yandex.com (.../track/...), zvuk.com/track/..., music.mts.ru/track/... or vk.com/music/track/.... content: {"service": "yandex"|"sberzvuk"|"mts"|"vk", "track_id": "<id>"}. Links to albums, playlists or artist pages are "chat".
3. "song": the message is not a link but looks like a song title and/or artist. Use search to find the most relevant track, fixing typos. content: {"song": "<Artist - Title>", "duration": <seconds, 0 if unknown>}. If search gives no confident result, classify as "chat".
4. "chat": everything else. content: the original message string unchanged.

When in doubt, always fall back to "chat".

Examples:
Input: https://www.instagram.com/p/Cxyz123/
Output: {"type": "instagram_link", "content": {"shortcode": "Cxyz123"}}
Input: https://vk.com/music/track/505362945_456241371
Output: {"type": "music_service_link", "content": {"service": "vk", "track_id": "505362945_456241371"}}
Input: включи дайте танк башмаки
Output: {"type": "song", "content": {"song": "Дайте танк (!) - Башмаки", "duration": 154}}
Input: Привет бот! Как настроение?
Output: {"type": "chat", "content": "Привет бот! Как настроение?"}`

const chatSystemPrompt = "You are a helpful assistant with access to real-time Google Search. Use search when needed to answer accurately. Answer in the user's language."

// Client wraps the Gemini API for the two jobs the bot has: classifying
// inbound messages and answering free-form chat.
type Client struct {
	genai         *genai.Client
	classifyModel string
	chatModel     string
}

// NewClient creates a Gemini client from the loaded configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg := config.Get()
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Gemini.APIKey})
	if err != nil {
		return nil, err
	}
	return &Client{
		genai:         gc,
		classifyModel: cfg.Gemini.ClassifyModel,
		chatModel:     cfg.Gemini.ChatModel,
	}, nil
}

// Classify determines what kind of request a message is. It never fails:
// any API or parsing problem degrades to a chat classification of the
// original text, and classification is never retried.
func (c *Client) Classify(ctx context.Context, text string) Result {
	resp, err := c.genai.Models.GenerateContent(ctx,
		c.classifyModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(classifySystemPrompt, genai.RoleUser),
			Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	)
	if err != nil {
		log.Errorf("%s Classification request failed: %v", logcolors.LogClassify, err)
		return chatResult(text)
	}

	result := ParseClassification(resp.Text(), text)
	log.Infof("%s Classified message as %q", logcolors.LogClassify, result.Intent)
	return result
}

// ChatReply answers a free-form message. Unlike classification the error is
// surfaced, so the caller can tell the user the assistant is unavailable.
func (c *Client) ChatReply(ctx context.Context, text string) (string, error) {
	resp, err := c.genai.Models.GenerateContent(ctx,
		c.chatModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(chatSystemPrompt, genai.RoleUser),
			Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
