package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

var resourcesReadURI string

func init() {
	rootCmd.AddCommand(resourcesListCmd)
	rootCmd.AddCommand(resourcesReadCmd)

	resourcesReadCmd.Flags().StringVar(&resourcesReadURI, "uri", "", "resource URI to read")
}

var resourcesListCmd = &cobra.Command{
	Use:   "resources-list",
	Short: "List the resources the server exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAndPrint(cmd, protocol.MethodResourcesList, nil)
	},
}

var resourcesReadCmd = &cobra.Command{
	Use:   "resources-read",
	Short: "Read a resource by URI",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resourcesReadURI == "" {
			return &usageError{msg: "--uri is required"}
		}
		return callAndPrint(cmd, protocol.MethodResourcesRead, protocol.ResourcesReadParams{URI: resourcesReadURI})
	},
}
