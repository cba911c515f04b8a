package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	commandQuit    = "/quit"
	commandExit    = "/exit"
	commandHelp    = "/help"
	commandClear   = "/clear"
	commandHistory = "/history"
	commandModel   = "/model"
	commandUpload  = "/upload"

	chatHelp = `Commands:
  /upload <path>  upload a résumé (pdf, doc, docx, txt)
  /model [id]     show or switch the model
  /history        print the conversation so far
  /clear          forget the conversation and the résumé
  /quit           leave
Anything else is sent to the assistant.`
)

var errQuit = errors.New("quit requested")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running career-agent server from the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("server", "s", "http://localhost:8080", "base URL of the career-agent server")
	chatCmd.Flags().String("session", "", "session id to resume (default is a new random id)")
	chatCmd.Flags().Duration("timeout", 3*time.Minute, "timeout for a single request")
	chatCmd.Flags().Bool("plain", false, "print replies as raw markdown")

	viper.BindPFlag("chat.server", chatCmd.Flags().Lookup("server"))
}

func chat(cmd *cobra.Command) {
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	plain, _ := cmd.Flags().GetBool("plain")

	r := &repl{
		client:      newAPIClient(viper.GetString("chat.server"), sessionID, timeout),
		out:         os.Stdout,
		selectModel: selectModel,
	}
	if !plain {
		r.render = markdownRenderer()
	}

	color.New(color.Faint).Fprintf(r.out, "session %s, type /help for commands\n", sessionID)

	ctx := context.Background()
	for {
		input := promptui.Prompt{Label: "you"}
		line, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			log.Fatalf("reading input: %s", err)
		}

		if err := r.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			r.failure(err)
		}
	}
}

// repl turns one line of input into one request against the server.
type repl struct {
	client      *apiClient
	out         io.Writer
	selectModel func(models []ai.Model, current string) (string, error)
	// render formats assistant markdown for the terminal; nil prints it raw.
	render func(string) string
}

func (r *repl) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		return r.chat(ctx, line)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case commandQuit, commandExit:
		return errQuit
	case commandHelp:
		fmt.Fprintln(r.out, chatHelp)
		return nil
	case commandClear:
		resp, err := r.client.Clear(ctx)
		if err != nil {
			return err
		}
		r.info(resp.Message)
		return nil
	case commandHistory:
		return r.history(ctx)
	case commandModel:
		return r.model(ctx, arg)
	case commandUpload:
		if arg == "" {
			return errors.New("usage: /upload <path>")
		}
		resp, err := r.client.Upload(ctx, arg)
		if err != nil {
			return err
		}
		r.info(resp.Message)
		if resp.CVAnalysis != "" {
			r.assistant(resp.CVAnalysis)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %s, type /help", command)
	}
}

func (r *repl) chat(ctx context.Context, message string) error {
	resp, err := r.client.Chat(ctx, message)
	if err != nil {
		return err
	}
	if !resp.Success {
		color.New(color.FgYellow).Fprintln(r.out, resp.Response)
		return nil
	}
	r.assistant(resp.Response)
	return nil
}

func (r *repl) history(ctx context.Context) error {
	resp, err := r.client.History(ctx)
	if err != nil {
		return err
	}

	r.info(fmt.Sprintf("model %s, %d turns", resp.Model, len(resp.History)))
	if resp.Document != nil {
		r.info("résumé: " + resp.Document.FileName)
	}
	for _, turn := range resp.History {
		switch turn.Role {
		case "user":
			color.New(color.FgGreen, color.Bold).Fprint(r.out, "you: ")
			fmt.Fprintln(r.out, turn.Content)
		default:
			color.New(color.FgCyan, color.Bold).Fprint(r.out, "assistant: ")
			fmt.Fprintln(r.out, turn.Content)
		}
	}
	return nil
}

func (r *repl) model(ctx context.Context, id string) error {
	models, err := r.client.Models(ctx)
	if err != nil {
		return err
	}

	if id == "" {
		id, err = r.selectModel(models.Models, models.CurrentModel)
		if err != nil {
			return err
		}
	}

	resp, err := r.client.SetModel(ctx, id)
	if err != nil {
		return err
	}
	r.info(resp.Message)
	return nil
}

func (r *repl) assistant(text string) {
	color.New(color.FgCyan, color.Bold).Fprint(r.out, "assistant: ")
	if r.render != nil {
		text = r.render(text)
	}
	fmt.Fprintln(r.out, text)
}

func markdownRenderer() func(string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return func(md string) string {
		out, err := renderer.Render(md)
		if err != nil {
			return md
		}
		return strings.TrimSpace(out)
	}
}

func (r *repl) info(text string) {
	color.New(color.Faint).Fprintln(r.out, text)
}

func (r *repl) failure(err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		color.New(color.FgRed).Fprintln(r.out, apiErr.Message)
		return
	}
	color.New(color.FgRed).Fprintln(r.out, err.Error())
}

func selectModel(models []ai.Model, current string) (string, error) {
	items := make([]string, 0, len(models))
	cursor := 0
	for i, m := range models {
		if m.ID == current {
			cursor = i
		}
		items = append(items, fmt.Sprintf("%s  %s", m.ID, m.Description))
	}

	prompt := promptui.Select{
		Label:     "Choose a model and press ENTER",
		Items:     items,
		CursorPos: cursor,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return models[i].ID, nil
}
