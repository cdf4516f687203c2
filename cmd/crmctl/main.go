// Command crmctl imports, exports and maintains CRM records from the shell.
//
//	crmctl import loadshare sheet.xlsx --scope <cluster-id>
//	crmctl export customers -o customers.xlsx
//	crmctl migrate
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/JonMunkholm/ispcrm/internal/core/schemas" // Register all schemas
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
