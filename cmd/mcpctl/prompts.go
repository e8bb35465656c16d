package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

var (
	promptsGetName string
	promptsGetArgs string
)

func init() {
	rootCmd.AddCommand(promptsListCmd)
	rootCmd.AddCommand(promptsGetCmd)

	promptsGetCmd.Flags().StringVar(&promptsGetName, "name", "", "prompt name to resolve")
	promptsGetCmd.Flags().StringVar(&promptsGetArgs, "arguments", "{}", "JSON object of prompt arguments")
}

var promptsListCmd = &cobra.Command{
	Use:   "prompts-list",
	Short: "List the prompt templates the server exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint(cmd, protocol.MethodPromptsList, nil)
	},
}

var promptsGetCmd = &cobra.Command{
	Use:   "prompts-get",
	Short: "Resolve a prompt template by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if promptsGetName == "" {
			return &usageError{msg: "--name is required"}
		}
		var argMap map[string]string
		if err := json.Unmarshal([]byte(promptsGetArgs), &argMap); err != nil {
			return &usageError{msg: "--arguments must be a JSON object of string values"}
		}
		return callAndPrint(cmd, protocol.MethodPromptsGet, protocol.PromptsGetParams{
			Name:      promptsGetName,
			Arguments: argMap,
		})
	},
}
