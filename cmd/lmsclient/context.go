package main

import (
	"context"

	"github.com/spf13/cobra"
)

func withApp(cmd *cobra.Command, a *app) context.Context {
	return context.WithValue(cmd.Context(), appKey{}, a)
}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}
