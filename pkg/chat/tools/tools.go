// Package tools binds the functions the model may call during a turn.
// Every outcome, including failures, is returned to the model as text.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"
	"ai-support-be/pkg/llm"
	"ai-support-be/pkg/vectorindex"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

const (
	NameSearchKnowledgeBase = "search_knowledge_base"
	NameCreateTicket        = "create_ticket"
	NameEscalateTicket      = "escalate_ticket"
	NameGetTicketStatus     = "get_ticket_status"

	NoResults = "No results found in the knowledge base."
)

// Scope identifies the conversation a call is made from.
type Scope struct {
	ConversationID uuid.UUID
	OrganizationID uuid.UUID
}

type Handler func(ctx context.Context, scope Scope, args json.RawMessage) (string, error)

type Binding struct {
	Definition llm.ToolDefinition
	Handler    Handler
}

type SearchKnowledgeBaseArgs struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"What to look up in the organization's knowledge base"`
}

type CreateTicketArgs struct {
	Subject string `json:"subject" jsonschema:"required" jsonschema_description:"One line summary of the customer's problem"`
	Context string `json:"context" jsonschema:"required" jsonschema_description:"Details gathered so far in the conversation"`
}

type EscalateTicketArgs struct {
	TicketID string `json:"ticket_id" jsonschema:"required" jsonschema_description:"ID of the ticket to hand over to a human agent"`
	Reason   string `json:"reason" jsonschema:"required" jsonschema_description:"Why a human needs to take over"`
}

type GetTicketStatusArgs struct {
	TicketID string `json:"ticket_id" jsonschema:"required"`
}

var reflector = &jsonschema.Reflector{
	Anonymous:                 true,
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

func definition(name, description string, args interface{}) llm.ToolDefinition {
	schema := reflector.Reflect(args)
	schema.Version = ""
	return llm.ToolDefinition{Name: name, Description: description, Parameters: schema}
}

// Dispatcher is the explicit table of tools advertised to the model.
type Dispatcher struct {
	bindings map[string]Binding
	order    []string
	timeout  time.Duration
	logger   logger.ILogger
}

func NewDispatcher(timeout time.Duration, log logger.ILogger) *Dispatcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Dispatcher{bindings: make(map[string]Binding), timeout: timeout, logger: log}
}

func (d *Dispatcher) Register(b Binding) *Dispatcher {
	if _, exists := d.bindings[b.Definition.Name]; !exists {
		d.order = append(d.order, b.Definition.Name)
	}
	d.bindings[b.Definition.Name] = b
	return d
}

func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.bindings[name].Definition)
	}
	return out
}

// Dispatch runs one call under the tool timeout and always returns a string for the model.
func (d *Dispatcher) Dispatch(ctx context.Context, scope Scope, call llm.ToolCall) string {
	b, ok := d.bindings[call.Name]
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues("unknown", "error").Inc()
		return fmt.Sprintf("Unknown tool %q.", call.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := json.RawMessage(call.Arguments)
	if strings.TrimSpace(call.Arguments) == "" {
		args = json.RawMessage("{}")
	}

	out, err := d.invoke(ctx, b.Handler, scope, args)
	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.ToolCallsTotal.WithLabelValues(call.Name, status).Inc()
		d.logger.Warn("TOOLS", "Tool call failed", map[string]interface{}{
			"tool":            call.Name,
			"conversation_id": scope.ConversationID.String(),
			"error":           err.Error(),
		})
		return toolError(call.Name, err)
	}
	metrics.ToolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	return out
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, scope Scope, args json.RawMessage) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	return h(ctx, scope, args)
}

func toolError(name string, err error) string {
	var exists *TicketExistsError
	switch {
	case errors.As(err, &exists):
		return exists.Error()
	case errors.Is(err, ErrInvalidArguments):
		return fmt.Sprintf("Invalid arguments for %s: %v", name, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("The %s tool timed out. Please continue without it.", name)
	default:
		return fmt.Sprintf("The %s tool failed: %v", name, err)
	}
}

var ErrInvalidArguments = errors.New("invalid arguments")

func decode(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func parseTicketID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: ticket_id %q is not a valid id", ErrInvalidArguments, raw)
	}
	return id, nil
}

// SearchKnowledgeBase is read only.
func SearchKnowledgeBase(index vectorindex.VectorIndex, topK int) Binding {
	if topK <= 0 {
		topK = 5
	}
	return Binding{
		Definition: definition(NameSearchKnowledgeBase,
			"Search the organization's knowledge base for information relevant to the customer's question.",
			&SearchKnowledgeBaseArgs{}),
		Handler: func(ctx context.Context, scope Scope, raw json.RawMessage) (string, error) {
			var args SearchKnowledgeBaseArgs
			if err := decode(raw, &args); err != nil {
				return "", err
			}
			if strings.TrimSpace(args.Query) == "" {
				return "", fmt.Errorf("%w: query is empty", ErrInvalidArguments)
			}
			snippets, err := index.Search(ctx, scope.OrganizationID, args.Query, topK)
			if err != nil {
				return "", err
			}
			return FormatSnippets(snippets), nil
		},
	}
}

func FormatSnippets(snippets []vectorindex.Snippet) string {
	if len(snippets) == 0 {
		return NoResults
	}
	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s) %s", i+1, s.Source, strings.TrimSpace(s.Content))
	}
	return b.String()
}

func CreateTicket(store TicketStore) Binding {
	return Binding{
		Definition: definition(NameCreateTicket,
			"Open a support ticket for this conversation. A conversation can have at most one ticket.",
			&CreateTicketArgs{}),
		Handler: func(ctx context.Context, scope Scope, raw json.RawMessage) (string, error) {
			var args CreateTicketArgs
			if err := decode(raw, &args); err != nil {
				return "", err
			}
			if strings.TrimSpace(args.Subject) == "" {
				return "", fmt.Errorf("%w: subject is empty", ErrInvalidArguments)
			}
			ticket, err := store.CreateForConversation(ctx, scope.OrganizationID, scope.ConversationID, args.Subject, args.Context)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Ticket %s created with status %s.", ticket.Id, ticket.Status), nil
		},
	}
}

func EscalateTicket(store TicketStore) Binding {
	return Binding{
		Definition: definition(NameEscalateTicket,
			"Escalate an existing ticket to a human support agent.",
			&EscalateTicketArgs{}),
		Handler: func(ctx context.Context, scope Scope, raw json.RawMessage) (string, error) {
			var args EscalateTicketArgs
			if err := decode(raw, &args); err != nil {
				return "", err
			}
			id, err := parseTicketID(args.TicketID)
			if err != nil {
				return "", err
			}
			res, err := store.Escalate(ctx, scope.OrganizationID, id, args.Reason)
			if err != nil {
				return "", err
			}
			if res.AlreadyEscalated {
				return fmt.Sprintf("Ticket %s is already escalated; no further action was taken.", id), nil
			}
			if res.Agent == nil {
				return fmt.Sprintf("Ticket %s was escalated. No agent is available right now; the next available agent will pick it up.", id), nil
			}
			return fmt.Sprintf("Ticket %s was escalated and assigned to %s.", id, res.Agent.Name), nil
		},
	}
}

func GetTicketStatus(store TicketStore) Binding {
	return Binding{
		Definition: definition(NameGetTicketStatus,
			"Look up the current status of a ticket.",
			&GetTicketStatusArgs{}),
		Handler: func(ctx context.Context, scope Scope, raw json.RawMessage) (string, error) {
			var args GetTicketStatusArgs
			if err := decode(raw, &args); err != nil {
				return "", err
			}
			id, err := parseTicketID(args.TicketID)
			if err != nil {
				return "", err
			}
			ticket, err := store.Get(ctx, scope.OrganizationID, id)
			if err != nil {
				return "", err
			}
			summary := fmt.Sprintf("Ticket %s: %q, status %s", ticket.Id, ticket.Subject, ticket.Status)
			if ticket.AssignedAgentId != nil {
				summary += ", assigned to an agent"
			}
			return summary + ".", nil
		},
	}
}

// NewSupportDispatcher registers the full support tool set.
func NewSupportDispatcher(index vectorindex.VectorIndex, store TicketStore, topK int, timeout time.Duration, log logger.ILogger) *Dispatcher {
	return NewDispatcher(timeout, log).
		Register(SearchKnowledgeBase(index, topK)).
		Register(CreateTicket(store)).
		Register(EscalateTicket(store)).
		Register(GetTicketStatus(store))
}
