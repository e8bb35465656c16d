package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

func init() {
	rootCmd.AddCommand(serverInfoCmd)
}

var serverInfoCmd = &cobra.Command{
	Use:   "server-info",
	Short: "Negotiate a session and print the server's identity and capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint(cmd, protocol.MethodInitialize, protocol.InitializeParams{
			ProtocolVersion: protocol.SupportedVersions[0],
			ClientInfo:      protocol.Implementation{Name: "mcpctl", Version: version},
		})
	},
}
