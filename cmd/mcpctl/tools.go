package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

var (
	toolsCallName string
	toolsCallArgs string
)

func init() {
	rootCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCallCmd)

	toolsCallCmd.Flags().StringVar(&toolsCallName, "name", "", "tool name to invoke")
	toolsCallCmd.Flags().StringVar(&toolsCallArgs, "arguments", "{}", "JSON-encoded tool arguments")
}

var toolsListCmd = &cobra.Command{
	Use:   "tools-list",
	Short: "List the tools the server exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint(cmd, protocol.MethodToolsList, nil)
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "tools-call",
	Short: "Invoke a tool by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if toolsCallName == "" {
			return &usageError{msg: "--name is required"}
		}
		var rawArgs json.RawMessage
		if toolsCallArgs != "" {
			if !json.Valid([]byte(toolsCallArgs)) {
				return &usageError{msg: "--arguments must be valid JSON"}
			}
			rawArgs = json.RawMessage(toolsCallArgs)
		}
		return callAndPrint(cmd, protocol.MethodToolsCall, protocol.ToolsCallParams{
			Name:      toolsCallName,
			Arguments: rawArgs,
		})
	},
}
