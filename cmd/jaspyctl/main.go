// Command jaspyctl is a terminal client for the note API, driving the same
// sync engine the UI uses. The bearer token is cached in a file and cleared
// when the server reports the session expired.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jaspyctl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &appContext{}

	root := &cobra.Command{
		Use:           "jaspyctl",
		Short:         "Jaspy Notes command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.serverURL, "server", envOr("JASPYNOTES_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&app.tokenPath, "token-file", envOr("JASPYNOTES_TOKEN_FILE", defaultTokenPath()), "bearer token cache file")

	root.AddCommand(
		newRegisterCommand(app),
		newLoginCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newListCommand(app),
		newAddCommand(app),
		newRemoveCommand(app),
		newTitleCommand(app),
		newBodyCommand(app),
		newItemCommand(app),
		newMoveCommand(app),
		newExportCommand(app),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".jaspyctl-token"
	}
	return dir + "/jaspyctl/token"
}
