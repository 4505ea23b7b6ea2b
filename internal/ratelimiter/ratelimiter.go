package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// API is the subset of *tgbotapi.BotAPI the limiter drives.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	chattable tgbotapi.Chattable
	chatID    int64
	// raw requests go through API.Request and return the bare API response.
	raw      bool
	response chan response
}

type response struct {
	message     tgbotapi.Message
	apiResponse *tgbotapi.APIResponse
	err         error
}

// RateLimiter paces everything that lands in a chat: per private chat one
// call per second, per group one call per three seconds. Chat actions and
// callback answers are not paced.
type RateLimiter struct {
	api      API
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(api API, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

func (rl *RateLimiter) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	chatID, ok := pacedChatID(c)
	if !ok {
		return rl.api.Send(c)
	}

	resp, err := rl.enqueue(request{chattable: c, chatID: chatID})
	if err != nil {
		return tgbotapi.Message{}, err
	}

	return resp.message, resp.err
}

// Request is for calls whose result is not a message, such as deletes and
// callback answers.
func (rl *RateLimiter) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	chatID, ok := pacedChatID(c)
	if !ok {
		return rl.api.Request(c)
	}

	resp, err := rl.enqueue(request{chattable: c, chatID: chatID, raw: true})
	if err != nil {
		return nil, err
	}

	return resp.apiResponse, resp.err
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) enqueue(req request) (response, error) {
	if err := rl.ctx.Err(); err != nil {
		return response{}, err
	}

	req.response = make(chan response, 1)

	select {
	case rl.queue <- req:
	case <-rl.ctx.Done():
		return response{}, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp, nil
	case <-rl.ctx.Done():
		return response{}, rl.ctx.Err()
	}
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	rl.mu.Lock()
	lastSent, exists := rl.lastSent[req.chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(req.chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(rl.ctx, "Rate limiting chattable",
				"chatID", req.chatID,
				"delay", delay,
				"chattableType", fmt.Sprintf("%T", req.chattable),
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.response <- response{err: rl.ctx.Err()}
				return
			}
		}
	}

	var resp response
	if req.raw {
		resp.apiResponse, resp.err = rl.api.Request(req.chattable)
	} else {
		resp.message, resp.err = rl.api.Send(req.chattable)
	}

	rl.mu.Lock()
	rl.lastSent[req.chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- resp
}

func pacedChatID(c tgbotapi.Chattable) (int64, bool) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID, true
	case tgbotapi.EditMessageTextConfig:
		return m.ChatID, true
	case tgbotapi.EditMessageReplyMarkupConfig:
		return m.ChatID, true
	case tgbotapi.DeleteMessageConfig:
		return m.ChatID, true
	case tgbotapi.DocumentConfig:
		return m.ChatID, true
	default:
		return 0, false
	}
}

func getDelay(chatID int64, lastSent time.Time) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
