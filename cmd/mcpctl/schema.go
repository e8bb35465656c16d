package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

var schemaExportOutput string

func init() {
	rootCmd.AddCommand(schemaExportCmd)
	schemaExportCmd.Flags().StringVar(&schemaExportOutput, "output", "", "file to write the schema document to (default: stdout)")
}

// toolSchema is one entry of the aggregate schema-export document.
type toolSchema struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

var schemaExportCmd = &cobra.Command{
	Use:   "schema-export",
	Short: "Export the aggregate JSON Schema of every registered tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		raw, err := c.Call(ctx, protocol.MethodToolsList, nil)
		if err != nil {
			return err
		}

		var listed protocol.ToolsListResult
		if err := json.Unmarshal(raw, &listed); err != nil {
			return fmt.Errorf("decoding tools/list result: %w", err)
		}

		schemas := make([]toolSchema, 0, len(listed.Tools))
		for _, t := range listed.Tools {
			schemas = append(schemas, toolSchema{
				Name:         t.Name,
				Description:  t.Description,
				InputSchema:  t.InputSchema,
				OutputSchema: t.OutputSchema,
			})
		}

		encoded, err := json.MarshalIndent(struct {
			Tools []toolSchema `json:"tools"`
		}{Tools: schemas}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding schema document: %w", err)
		}

		return writeOutput(schemaExportOutput, encoded)
	},
}
