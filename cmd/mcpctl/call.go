package main

import (
	"github.com/spf13/cobra"
)

// callAndPrint is the shared body of every read-only subcommand: open a
// client for the configured transport, issue one request, print the
// result, and close the connection.
func callAndPrint(cmd *cobra.Command, method string, params interface{}) error {
	ctx := cmd.Context()

	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	return printResult(result)
}
