// Package orchestrator runs chat turns: it lets the model decide which
// capability tool to call, executes the calls and records the conversation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"
	"github.com/duybaohuynhtan/CareerAgent/internal/util"

	"go.uber.org/zap"
)

const (
	DefaultMaxToolCalls = 5

	// FailureMessage is shown when a turn could not be answered.
	FailureMessage = "Sorry, an error occurred during processing. Please try again."

	defaultMaxLogLength = 200
)

// ErrUnknownTool is reported when the model keeps asking for a tool that
// does not exist.
var ErrUnknownTool = errors.New("unknown tool requested")

//go:embed prompts/system.md
var systemPrompt string

type toolRunner interface {
	Has(name string) bool
	Declarations() []ai.ToolDeclaration
	Execute(ctx context.Context, call ai.ToolCallRequest, env tools.Env) tools.Invocation
}

type extractor interface {
	Extract(ctx context.Context, data []byte, nameOrExt string) (string, error)
}

type analyzer interface {
	Analyze(ctx context.Context, model, text string) (*tools.AnalysisResult, error)
}

type Options struct {
	MaxToolCalls int
	MaxLogLength int
}

type Orchestrator struct {
	llm          ai.Backend
	tools        toolRunner
	store        *session.Store
	extractor    extractor
	analyzer     analyzer
	maxToolCalls int
	maxLogLen    int
	logger       *zap.Logger
}

// Reply is the outcome of one chat turn. Err carries the cause when Success
// is false.
type Reply struct {
	Text        string
	Success     bool
	Err         error
	Model       string
	Invocations []tools.Invocation
}

func New(llm ai.Backend, toolset toolRunner, store *session.Store, ex extractor, an analyzer, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = DefaultMaxToolCalls
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	return &Orchestrator{
		llm:          llm,
		tools:        toolset,
		store:        store,
		extractor:    ex,
		analyzer:     an,
		maxToolCalls: opts.MaxToolCalls,
		maxLogLen:    opts.MaxLogLength,
		logger:       log,
	}
}

func (o *Orchestrator) Store() *session.Store { return o.store }

// Chat runs one orchestration pass for message. seed restores earlier turns
// into a session that has none. The returned error is set only when the pass
// could not start, e.g. session.ErrBusy; model and tool failures are reported
// through the Reply.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, message string, seed []session.ChatTurn) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, errors.New("message must not be empty")
	}

	s := o.store.GetOrCreate(sessionID)
	snap, err := s.Acquire()
	if err != nil {
		return Reply{}, err
	}
	defer s.Release()

	log := logger.WithSession(o.logger, s.ID(), snap.Model)

	if s.Seed(snap.Epoch, seed) {
		log.Debug("session history restored from client", zap.Int("turns", len(seed)))
		snap = s.Snapshot()
	}

	userIdx, appended := s.Append(snap.Epoch, session.ChatTurn{
		Role:      session.RoleUser,
		Content:   message,
		CreatedAt: time.Now(),
		Pending:   true,
	})

	log.Info("chat turn started",
		zap.Int("history", len(snap.History)),
		zap.String("message_preview", util.TruncateForLog(message, o.maxLogLen)),
	)

	env := tools.Env{Model: snap.Model}
	system := systemPrompt
	if snap.Document != nil {
		env.DocumentText = snap.Document.Text
		system += fmt.Sprintf("\nThe user has uploaded a résumé (%s). Call analyze_document without arguments to read it.\n", snap.Document.FileName)
	}

	messages := append(historyMessages(snap.History), ai.Message{Role: ai.RoleUser, Content: message})
	reply := o.run(ctx, log, snap.Model, system, messages, env)
	reply.Model = snap.Model

	if appended {
		appended = s.Complete(snap.Epoch, userIdx, session.ChatTurn{
			Role:      session.RoleAssistant,
			Content:   reply.Text,
			CreatedAt: time.Now(),
			Failed:    !reply.Success,
		})
	}
	if !appended {
		log.Info("session was reset during the turn, reply not recorded")
	}

	fields := []zap.Field{zap.Bool("success", reply.Success), zap.Int("tool_calls", len(reply.Invocations))}
	if reply.Err != nil {
		fields = append(fields, zap.Error(reply.Err))
	}
	log.Info("chat turn finished", fields...)

	return reply, nil
}

// run drives the model until it answers with text, a tool call fails
// validation, or the tool call budget is spent.
func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, model, system string, messages []ai.Message, env tools.Env) Reply {
	var (
		invocations []tools.Invocation
		unknown     int
	)

	for {
		resp, err := o.llm.Complete(ctx, ai.CompletionRequest{
			Model:    model,
			System:   system,
			Messages: messages,
			Tools:    o.tools.Declarations(),
		})
		if err != nil {
			log.Error("llm completion failed", zap.Error(err))
			return Reply{Text: FailureMessage, Err: err, Invocations: invocations}
		}

		switch r := resp.(type) {
		case ai.TextReply:
			return Reply{Text: r.Text, Success: true, Invocations: invocations}

		case ai.ToolCallRequest:
			call := r
			if !o.tools.Has(call.Name) {
				unknown++
				log.Warn("model requested an unknown tool", zap.String(logger.FieldTool, call.Name), zap.Int("consecutive", unknown))
				if unknown > 1 {
					return Reply{
						Text:        FailureMessage,
						Err:         fmt.Errorf("%w: %q", ErrUnknownTool, call.Name),
						Invocations: invocations,
					}
				}
				messages = append(messages,
					ai.Message{Role: ai.RoleAssistant, Call: &call},
					toolMessage(call, map[string]any{
						"error": fmt.Sprintf("tool %q does not exist, use one of: %s, %s", call.Name, tools.AnalyzeDocument, tools.SearchJobs),
					}),
				)
				continue
			}
			unknown = 0

			if len(invocations) >= o.maxToolCalls {
				log.Warn("tool call limit reached", zap.Int("limit", o.maxToolCalls))
				return Reply{Text: partialAnswer(invocations), Success: true, Invocations: invocations}
			}

			log.Debug("executing tool", zap.String(logger.FieldTool, call.Name), zap.Any("arguments", call.Arguments))
			inv := o.tools.Execute(ctx, call, env)
			invocations = append(invocations, inv)

			var argErr *tools.ArgumentError
			if errors.As(inv.Err, &argErr) {
				return Reply{Text: apology(argErr), Success: true, Invocations: invocations}
			}

			messages = append(messages,
				ai.Message{Role: ai.RoleAssistant, Call: &call},
				toolMessage(call, inv.Output()),
			)

		default:
			return Reply{Text: FailureMessage, Err: fmt.Errorf("unexpected reply type %T", resp), Invocations: invocations}
		}
	}
}

func historyMessages(history []session.ChatTurn) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+1)
	for _, turn := range history {
		if turn.Failed || turn.Pending || strings.TrimSpace(turn.Content) == "" {
			continue
		}
		role := ai.RoleUser
		if turn.Role == session.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Content})
	}
	return messages
}

func toolMessage(call ai.ToolCallRequest, output map[string]any) ai.Message {
	return ai.Message{
		Role: ai.RoleTool,
		Result: &ai.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Output: output,
		},
	}
}

func apology(err *tools.ArgumentError) string {
	return fmt.Sprintf("Sorry, I could not run %s: %s. Could you rephrase or add the missing details?", err.Tool, err.Err)
}

func partialAnswer(invocations []tools.Invocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I reached the limit of %d tool calls for one message. Here is what I found so far:", len(invocations))
	for _, inv := range invocations {
		if summary := inv.Summary(); summary != "" {
			b.WriteString("\n\n")
			b.WriteString(summary)
		}
	}
	return b.String()
}
