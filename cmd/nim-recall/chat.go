package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/engine"
	"github.com/becomeliminal/nim-recall/tools"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a memory-enabled agent in the terminal (needs ANTHROPIC_API_KEY)",
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := newWorkflow(nil)
		if err != nil {
			return err
		}

		model, _ := cmd.Flags().GetString("model")
		userID, _ := cmd.Flags().GetString("user-id")
		userName, _ := cmd.Flags().GetString("user-name")

		client := anthropic.NewClient()
		eng := engine.NewEngine(&client, nil,
			engine.WithCapabilities(tools.Capabilities(wf)),
			engine.WithLogger(logrus.StandardLogger()),
		)

		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())
		var history []core.Message

		fmt.Fprintln(out, "Chat with Nim (ctrl-d to quit)")
		for {
			fmt.Fprint(out, "\nYou: ")
			if !in.Scan() {
				fmt.Fprintln(out)
				return in.Err()
			}
			line := strings.TrimSpace(in.Text())
			if line == "" {
				continue
			}

			fmt.Fprint(out, "Nim: ")
			res, err := eng.Run(cmd.Context(), &engine.Input{
				UserMessage: line,
				UserID:      userID,
				UserName:    userName,
				History:     history,
				Model:       model,
				StreamCallback: func(chunk string, done bool) {
					if done {
						fmt.Fprintln(out)
						return
					}
					fmt.Fprint(out, chunk)
				},
			})
			if err != nil {
				logrus.WithError(err).Error("turn failed")
				continue
			}

			history = append(history,
				core.Message{Role: core.RoleUser, Content: line},
				core.Message{Role: core.RoleAssistant, Content: res.Text},
			)
		}
	},
}

func init() {
	chatCmd.Flags().String("model", engine.DefaultModel, "Claude model")
	chatCmd.Flags().String("user-id", "cli", "user scope passed to memU")
	chatCmd.Flags().String("user-name", "", "display name stored with recorded memories")
}
