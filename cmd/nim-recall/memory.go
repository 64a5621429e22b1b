package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-recall/memory"
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search long-term memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := newWorkflow(nil)
		if err != nil {
			return err
		}

		topK, _ := cmd.Flags().GetInt("top-k")
		userID, _ := cmd.Flags().GetString("user-id")
		fmt.Fprintln(cmd.OutOrStdout(), wf.ExplicitRecall(cmd.Context(), memory.RecallOptions{
			Query:  strings.Join(args, " "),
			TopK:   topK,
			UserID: userID,
		}))
		return nil
	},
}

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := newWorkflow(nil)
		if err != nil {
			return err
		}

		userID, _ := cmd.Flags().GetString("user-id")
		userName, _ := cmd.Flags().GetString("user-name")
		fmt.Fprintln(cmd.OutOrStdout(), wf.RecordMemory(cmd.Context(), memory.WriteOptions{
			Content:  strings.Join(args, " "),
			UserID:   userID,
			UserName: userName,
		}))
		return nil
	},
}

func init() {
	rememberCmd.Flags().String("user-name", "", "display name stored with the memory")
	recallCmd.Flags().Int("top-k", 0, "number of memories to return (default: explicit_top_k)")
	for _, cmd := range []*cobra.Command{recallCmd, rememberCmd} {
		cmd.Flags().String("user-id", "", "user scope passed to memU")
	}
}
