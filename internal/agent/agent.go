// Package agent runs the tool-calling conversation loop of the shopping
// assistant: it sends the history to the model, executes the tools the
// model asks for and returns the final reply.
package agent

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/domain/order"
	"github.com/xenking/salesvoice/internal/domain/product"
	"github.com/xenking/salesvoice/internal/llm"
	"github.com/xenking/salesvoice/internal/session"
)

// NotConfiguredReply is returned instead of a model reply when the LLM
// client has no credential.
const NotConfiguredReply = "Error: LLM API key not configured."

// Tool results for confirm_order.
const (
	OrderFinalizedReply    = "Order confirmed and finalized successfully."
	OrderNotFinalizedReply = "Order was not finalized."
)

// DefaultMaxToolRounds is the number of completions that may request tools
// before a final, tool-free completion is requested.
const DefaultMaxToolRounds = 1

// ChatModel is the completion endpoint.
type ChatModel interface {
	Configured() bool
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// OrderTools executes the catalog tools.
type OrderTools interface {
	SearchProducts(ctx context.Context, q product.Query) string
	CreateOrder(ctx context.Context, productID string, quantity any) order.Result
}

var _ OrderTools = (*order.Service)(nil)

type toolHandler func(ctx context.Context, args string) (string, error)

// Agent holds the tool registry and loop settings. It is safe for
// concurrent use; each Respond call works on its own copy of the history.
type Agent struct {
	model         ChatModel
	tools         OrderTools
	publisher     session.Publisher
	systemPrompt  string
	maxToolRounds int
	handlers      map[ToolName]toolHandler
	declarations  []llm.Tool
}

// Option configures an Agent.
type Option func(*Agent)

// WithPublisher sets where session events go.
func WithPublisher(p session.Publisher) Option {
	return func(a *Agent) { a.publisher = p }
}

// WithSystemPrompt overrides the default instructions.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithMaxToolRounds bounds how many completions may call tools. Zero
// disables tools.
func WithMaxToolRounds(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxToolRounds = n
		}
	}
}

// New creates an Agent.
func New(model ChatModel, tools OrderTools, opts ...Option) *Agent {
	a := &Agent{
		model:         model,
		tools:         tools,
		publisher:     session.Discard,
		systemPrompt:  DefaultSystemPrompt,
		maxToolRounds: DefaultMaxToolRounds,
		declarations:  Tools(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.handlers = map[ToolName]toolHandler{
		SearchProducts: a.searchProducts,
		CreateOrder:    a.createOrder,
		ConfirmOrder:   a.confirmOrder,
	}
	return a
}

// Respond runs the conversation in history to completion and returns the
// final assistant text, which may be empty. history is not modified.
func (a *Agent) Respond(ctx context.Context, history []llm.Message) (string, error) {
	lg := zctx.From(ctx)
	if !a.model.Configured() {
		lg.Warn("LLM client is not configured")
		return NotConfiguredReply, nil
	}

	messages := a.withSystemPrompt(history)
	for round := 0; ; round++ {
		req := llm.ChatRequest{Messages: messages}
		offerTools := round < a.maxToolRounds
		if offerTools {
			req.Tools = a.declarations
		}

		resp, err := a.model.Chat(ctx, req)
		if err != nil {
			return "", errors.Wrapf(err, "completion round %d", round)
		}

		calls := resp.Message.ToolCalls
		if len(calls) == 0 || !offerTools {
			return resp.Message.Content, nil
		}

		lg.Debug("Model requested tools", zap.Int("round", round), zap.Int("calls", len(calls)))
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: calls,
		})
		for _, call := range calls {
			messages = append(messages, llm.NewToolMessage(call, a.Dispatch(ctx, call)))
		}
	}
}

// Dispatch executes one tool call and returns the tool-result content.
// Unknown tools and malformed arguments produce {"error": ...} so the model
// can recover.
func (a *Agent) Dispatch(ctx context.Context, call llm.ToolCall) string {
	ctx = zctx.With(ctx, zap.String("tool", call.Name), zap.String("call_id", call.ID))
	lg := zctx.From(ctx)

	name, err := ParseToolName(call.Name)
	if err != nil {
		lg.Warn("Model requested unknown tool")
		return errorResult(err.Error())
	}

	lg.Debug("Calling tool", zap.String("arguments", call.Arguments))
	out, err := a.handlers[name](ctx, call.Arguments)
	if err != nil {
		lg.Info("Invalid tool arguments", zap.Error(err))
		return errorResult("invalid arguments for " + string(name) + ": " + err.Error())
	}
	return out
}

func (a *Agent) searchProducts(ctx context.Context, raw string) (string, error) {
	args, err := decodeSearchArgs(raw)
	if err != nil {
		return "", err
	}
	return a.tools.SearchProducts(ctx, args.query()), nil
}

func (a *Agent) createOrder(ctx context.Context, raw string) (string, error) {
	args, err := decodeCreateArgs(raw)
	if err != nil {
		return "", err
	}

	res := a.tools.CreateOrder(ctx, args.ProductID, args.Quantity)
	if res.IsConfirmed() {
		a.publish(ctx, session.OrderConfirmedEvent(res.Order))
	}
	data, _ := res.MarshalJSON()
	return string(data), nil
}

func (a *Agent) confirmOrder(ctx context.Context, raw string) (string, error) {
	args, err := decodeConfirmArgs(raw)
	if err != nil {
		return "", err
	}
	if !args.Confirmed {
		return OrderNotFinalizedReply, nil
	}
	a.publish(ctx, session.OrderFinalizedEvent())
	return OrderFinalizedReply, nil
}

// publish delivers e; failures are logged and never fail the turn.
func (a *Agent) publish(ctx context.Context, e session.Event) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Error("Publish session event failed",
			zap.String("event", string(e.Type)),
			zap.Error(err),
		)
	}
}

func (a *Agent) withSystemPrompt(history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	if len(history) == 0 || history[0].Role != llm.RoleSystem {
		messages = append(messages, llm.NewSystemMessage(a.systemPrompt))
	}
	return append(messages, history...)
}

func errorResult(msg string) string {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	return string(e.Bytes())
}
