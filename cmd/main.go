package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/forest-guardian/fmc-pipeline/internal/notification"
	"github.com/forest-guardian/fmc-pipeline/internal/properties"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n\033[31mPANIC: %v\033[0m\n", r)
			errMessage := fmt.Sprintf("FMC pipeline panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack())
			discord := notification.NewDiscord(properties.DiscordErrorNotificationUrl(), "")
			if err := discord.Error(context.Background(), errMessage); err != nil {
				fmt.Fprintf(os.Stderr, "\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
