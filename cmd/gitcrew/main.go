// gitcrew is an MCP server exposing a GitHub-centered developer
// workflow to LLM clients over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitcrew/gitcrew/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gitcrew",
	Short: "GitHub workflow MCP server",
	Long: `gitcrew exposes issue, branch, PR, code search, blast-radius, and
multi-agent orchestration tools to an LLM client over the Model
Context Protocol.

Run with --mcp to start the server on stdin/stdout. Everything the
server logs goes to stderr; stdout carries only protocol messages.

Examples:
  gitcrew --mcp                 # serve MCP over stdio
  REPO_PATH=/work/app gitcrew --mcp
  gitcrew version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		if !mcpMode {
			return cmd.Help()
		}
		return runServer(cmd)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gitcrew version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gitcrew %s\n", version.Version)
	},
}

func init() {
	rootCmd.Flags().Bool("mcp", false, "serve the Model Context Protocol over stdin/stdout")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
