package main

import (
	"sync"

	"github.com/spf13/cobra"
)

// Commands annotated with this key write their own output and report errors
// as plain text rather than structured log lines.
const plainOutputAnnotation = "infralens/plain-output"

var rootCmd = &cobra.Command{
	Use:           "infralens",
	Short:         "InfraLens serves a read-only dashboard over AWS, CyberArk and Terraform inventory.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Assigned here rather than in the literal: the hook refers back to
	// rootCmd, which would otherwise be an initialization cycle.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: commandUsesStructuredLogging(cmd),
		})
	}
	rootCmd.AddCommand(serveCmd, refreshCmd, migrateCmd, versionCmd)
}

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	execCtxMu sync.RWMutex
	execCtx   commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	execCtxMu.Lock()
	defer execCtxMu.Unlock()
	execCtx = ctx
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	execCtxMu.RLock()
	defer execCtxMu.RUnlock()
	return execCtx
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[plainOutputAnnotation]; ok {
			return false
		}
	}
	return cmd != rootCmd
}
