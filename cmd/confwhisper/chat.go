package main

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/provider"
)

const defaultSystemPrompt = "You are a helpful assistant."

func newChatCmd(opts *rootOptions) *cobra.Command {
	var system string
	var hideReasoning bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream a single-turn completion (prompt from args or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, h, err := opts.handler()
			if err != nil {
				return err
			}
			defer h.Close()

			messages := []api.Message{api.NewTextMessage(api.RoleUser, prompt)}
			r := &renderer{out: cmd.OutOrStdout(), hideReasoning: hideReasoning}
			return r.render(h.GetModel(), h.CreateMessage(cmd.Context(), system, messages))
		},
	}
	cmd.Flags().StringVar(&system, "system", defaultSystemPrompt, "System prompt")
	cmd.Flags().BoolVar(&hideReasoning, "hide-reasoning", false, "Do not print reasoning content")
	return cmd
}

// readPrompt joins args, or reads stdin when no args are given.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no prompt given: pass it as argument or pipe it on stdin")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}
	return prompt, nil
}

// renderer prints a completion stream: reasoning dimmed, text plain, and a
// usage footer.
type renderer struct {
	out           io.Writer
	hideReasoning bool

	inReasoning bool
	usage       *api.StreamEvent
}

func (r *renderer) render(model provider.Model, events iter.Seq2[api.StreamEvent, error]) error {
	for ev, err := range events {
		if err != nil {
			r.endReasoning()
			fmt.Fprintln(r.out)
			return err
		}
		switch ev.Type {
		case api.EventReasoning:
			if r.hideReasoning {
				continue
			}
			r.inReasoning = true
			fmt.Fprint(r.out, reasoningStyle.Render(ev.Reasoning))
		case api.EventText:
			r.endReasoning()
			fmt.Fprint(r.out, ev.Text)
		case api.EventUsage:
			u := ev
			r.usage = &u
		}
	}
	r.endReasoning()
	fmt.Fprintln(r.out)

	if r.usage != nil {
		cost := model.Info.Cost(r.usage.InputTokens, r.usage.OutputTokens)
		fmt.Fprintln(r.out, footerStyle.Render(fmt.Sprintf("%s · %d in / %d out tokens · $%.6f",
			model.ID, r.usage.InputTokens, r.usage.OutputTokens, cost)))
	}
	return nil
}

func (r *renderer) endReasoning() {
	if r.inReasoning {
		fmt.Fprint(r.out, "\n\n")
		r.inReasoning = false
	}
}
