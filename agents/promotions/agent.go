package promotions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	server "github.com/inference-gateway/menu-agents/server"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// AgentType is the routing namespace of the promotions agent
const AgentType = "promotions"

// MethodList returns the promotions of a store
const MethodList = "promotions/list"

// Subscription event names
const (
	EventPromotionCreated = "promotion.created"
	EventPromotionExpired = "promotion.expired"
)

var supportedEvents = map[string]bool{
	EventPromotionCreated: true,
	EventPromotionExpired: true,
}

// Promotion is a discount offered by a store
type Promotion struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Discount    float64    `json:"discount"`
	ValidUntil  *time.Time `json:"validUntil,omitempty"`
	Expired     bool       `json:"expired"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PromotionInput is the optional structured form of a promotion sent as the
// "promotion" param of message/send. Without it the message text is the title.
type PromotionInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Discount    float64    `json:"discount"`
	ValidUntil  *time.Time `json:"validUntil"`
}

// Subscription is a callback registered through tasks/subscribe
type Subscription struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	CallbackURL string    `json:"callbackUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListResult is the result of promotions/list
type ListResult struct {
	Promotions []Promotion `json:"promotions"`
}

type sendParams struct {
	Message   types.Message   `json:"message"`
	Promotion *PromotionInput `json:"promotion"`
}

type listParams struct {
	IncludeExpired bool `json:"includeExpired"`
}

// Agent manages promotions and notifies subscribers when they change
type Agent struct {
	logger   *zap.Logger
	repo     server.Repository
	tasks    *server.TaskStore
	notifier server.Notifier
	now      func() time.Time

	// guards the read-check-write of lazy expiry
	expireMu sync.Mutex
}

// New creates the promotions agent. A nil notifier drops every event.
func New(logger *zap.Logger, repo server.Repository, notifier server.Notifier) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = server.NoopNotifier{}
	}
	return &Agent{
		logger:   logger.With(zap.String("agent_type", AgentType)),
		repo:     repo,
		tasks:    server.NewTaskStore(logger, repo, AgentType),
		notifier: notifier,
		now:      time.Now,
	}
}

// Build returns the runtime agent mounted at promotions/{agentID}
func (a *Agent) Build(agentID string) (*server.AgentImpl, error) {
	return server.NewAgentBuilder(a.logger).
		WithAddress(AgentType, agentID).
		WithName("Promotions").
		WithDescription("Creates store promotions and notifies subscribers").
		WithMethod(types.MethodMessageSend, "Creates a promotion from the message text or a 'promotion' param", a.handleSend).
		WithMethod(MethodList, "Lists promotions, expiring those past their end date", a.handleList).
		WithMethod(types.MethodTasksSubscribe, "Registers a callback for promotion.created or promotion.expired", a.handleSubscribe).
		WithMethod(types.MethodTasksGet, "Returns a recorded task", a.handleGetTask).
		Build()
}

func promotionPrefix(agentID string) string {
	return AgentType + "/" + agentID + "/promotions/"
}

func subscriptionPrefix(agentID string) string {
	return AgentType + "/" + agentID + "/subscriptions/"
}

func (a *Agent) handleSend(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[sendParams](params)
	if err != nil {
		return nil, err
	}

	input := PromotionInput{Title: strings.TrimSpace(p.Message.Text())}
	if p.Promotion != nil {
		input = *p.Promotion
		if strings.TrimSpace(input.Title) == "" {
			input.Title = strings.TrimSpace(p.Message.Text())
		}
	}

	now := a.now().UTC()
	if err := validateInput(input, now); err != nil {
		return nil, errInvalidPromotion(err.Error())
	}

	task, err := a.tasks.CreateTask(ctx, agentID, types.TaskStateWorking, &p.Message)
	if err != nil {
		return nil, err
	}

	promotion := Promotion{
		ID:          server.GenerateTaskID(),
		TaskID:      task.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Discount:    input.Discount,
		ValidUntil:  input.ValidUntil,
		CreatedAt:   now,
	}
	if err := a.savePromotion(ctx, agentID, promotion); err != nil {
		return nil, err
	}

	if _, err := a.tasks.Complete(ctx, agentID, task.ID, promotion); err != nil {
		return nil, err
	}

	a.logger.Info("promotion created", zap.String("agent_id", agentID), zap.String("promotion_id", promotion.ID))
	a.publish(ctx, agentID, EventPromotionCreated, promotion)

	return promotion, nil
}

func validateInput(input PromotionInput, now time.Time) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if input.Discount < 0 || input.Discount > 100 {
		return fmt.Errorf("discount must be between 0 and 100")
	}
	if input.ValidUntil != nil && !input.ValidUntil.After(now) {
		return fmt.Errorf("validUntil must be in the future")
	}
	return nil
}

func (a *Agent) handleList(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	var p listParams
	if len(params) > 0 && string(params) != "null" {
		decoded, err := server.DecodeParams[listParams](params)
		if err != nil {
			return nil, err
		}
		p = decoded
	}

	entries, err := a.repo.List(ctx, promotionPrefix(agentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}

	now := a.now().UTC()
	promotions := make([]Promotion, 0, len(entries))
	for _, entry := range entries {
		var promotion Promotion
		if err := json.Unmarshal(entry.Value, &promotion); err != nil {
			return nil, fmt.Errorf("failed to decode promotion %s: %w", entry.Key, err)
		}

		if !promotion.Expired && promotion.ValidUntil != nil && !promotion.ValidUntil.After(now) {
			expired, changed, err := a.expire(ctx, agentID, promotion.ID, now)
			if err != nil {
				return nil, err
			}
			promotion = expired
			if changed {
				a.publish(ctx, agentID, EventPromotionExpired, promotion)
			}
		}

		if promotion.Expired && !p.IncludeExpired {
			continue
		}
		promotions = append(promotions, promotion)
	}

	return ListResult{Promotions: promotions}, nil
}

// expire marks a promotion past its end date as expired. The stored copy is
// re-read under the lock, so only the call that flips it reports changed.
func (a *Agent) expire(ctx context.Context, agentID, promotionID string, now time.Time) (Promotion, bool, error) {
	a.expireMu.Lock()
	defer a.expireMu.Unlock()

	var promotion Promotion
	data, err := a.repo.Get(ctx, promotionPrefix(agentID)+promotionID)
	if err != nil {
		return promotion, false, fmt.Errorf("failed to load promotion %s: %w", promotionID, err)
	}
	if err := json.Unmarshal(data, &promotion); err != nil {
		return promotion, false, fmt.Errorf("failed to decode promotion %s: %w", promotionID, err)
	}

	if promotion.Expired || promotion.ValidUntil == nil || promotion.ValidUntil.After(now) {
		return promotion, false, nil
	}

	promotion.Expired = true
	if err := a.savePromotion(ctx, agentID, promotion); err != nil {
		return promotion, false, err
	}
	return promotion, true, nil
}

func (a *Agent) handleSubscribe(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[types.SubscribeParams](params)
	if err != nil {
		return nil, err
	}

	if !supportedEvents[p.Event] {
		return nil, errUnsupportedEvent(p.Event)
	}
	if err := validateCallbackURL(p.CallbackURL); err != nil {
		return nil, errInvalidCallbackURL(err.Error())
	}

	subscription := Subscription{
		ID:          server.GenerateTaskID(),
		Event:       p.Event,
		CallbackURL: p.CallbackURL,
		CreatedAt:   a.now().UTC(),
	}

	data, err := json.Marshal(subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := a.repo.Set(ctx, subscriptionPrefix(agentID)+subscription.ID, data); err != nil {
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}

	a.logger.Info("subscription registered",
		zap.String("agent_id", agentID),
		zap.String("event", p.Event),
		zap.String("callback_url", p.CallbackURL))

	return subscription, nil
}

func validateCallbackURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("callbackUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func (a *Agent) handleGetTask(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[types.TaskQueryParams](params)
	if err != nil {
		return nil, err
	}

	task, err := a.tasks.GetTask(ctx, agentID, p.TaskID)
	if err != nil {
		if server.IsTaskNotFound(err) {
			return nil, errTaskNotFound(p.TaskID)
		}
		return nil, err
	}
	return task, nil
}

func (a *Agent) savePromotion(ctx context.Context, agentID string, promotion Promotion) error {
	data, err := json.Marshal(promotion)
	if err != nil {
		return fmt.Errorf("failed to encode promotion: %w", err)
	}
	if err := a.repo.Set(ctx, promotionPrefix(agentID)+promotion.ID, data); err != nil {
		return fmt.Errorf("failed to store promotion: %w", err)
	}
	return nil
}

// subscriptions returns the callbacks registered for event
func (a *Agent) subscriptions(ctx context.Context, agentID, event string) ([]Subscription, error) {
	entries, err := a.repo.List(ctx, subscriptionPrefix(agentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var matching []Subscription
	for _, entry := range entries {
		var subscription Subscription
		if err := json.Unmarshal(entry.Value, &subscription); err != nil {
			a.logger.Warn("skipping unreadable subscription", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		if subscription.Event == event {
			matching = append(matching, subscription)
		}
	}
	return matching, nil
}

// publish delivers event to every matching subscription. Delivery failures are
// logged and never fail the calling method.
func (a *Agent) publish(ctx context.Context, agentID, event string, promotion Promotion) {
	subscriptions, err := a.subscriptions(ctx, agentID, event)
	if err != nil {
		a.logger.Error("failed to load subscriptions", zap.String("event", event), zap.Error(err))
		return
	}

	for _, subscription := range subscriptions {
		ce := types.NewSubscriptionEvent(event, agentID, promotion)
		ce.SetSubject(promotion.ID)
		if err := a.notifier.Notify(ctx, subscription.CallbackURL, ce); err != nil {
			a.logger.Warn("failed to notify subscriber",
				zap.String("subscription_id", subscription.ID),
				zap.String("callback_url", subscription.CallbackURL),
				zap.String("event", event),
				zap.Error(err))
		}
	}
}
