package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	notesync "jaspynotes/internal/sync"
	"jaspynotes/pkg/domain"
)

func newRegisterCommand(app *appContext) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and login",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := app.postAuth("/auth/register", args[0], password)
			if err != nil {
				return err
			}
			if err := app.writeToken(resp.Token); err != nil {
				return err
			}
			fmt.Printf("registered as %s (user %d)\n", resp.Username, resp.UserID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCommand(app *appContext) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Login and cache the bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := app.postAuth("/auth/login", args[0], password)
			if err != nil {
				return err
			}
			if err := app.writeToken(resp.Token); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", resp.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and clear the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimSuffix(app.serverURL, "/")+"/auth/logout", bytes.NewReader(nil))
			if err != nil {
				return err
			}
			if token := app.readToken(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			if resp, err := http.DefaultClient.Do(req); err == nil {
				_ = resp.Body.Close()
			}
			app.clearToken()
			fmt.Println("logged out")
			return nil
		},
	}
}

func newWhoamiCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				strings.TrimSuffix(app.serverURL, "/")+"/auth/me", nil)
			if err != nil {
				return err
			}
			if token := app.readToken(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode == http.StatusUnauthorized {
				app.clearToken()
				return fmt.Errorf("not logged in")
			}
			var out struct {
				Username string `json:"username"`
				UserID   int64  `json:"userId"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			fmt.Printf("%s (user %d)\n", out.Username, out.UserID)
			return nil
		},
	}
}

func newListCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notes in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := app.engine()
			if err := engine.Load(cmd.Context()); err != nil {
				return err
			}
			for _, note := range engine.Notes() {
				fmt.Printf("[%d] %s (%s)\n", note.NoteID, note.Title, note.Type)
				if note.Type == domain.NoteTypeFreetext {
					if note.Body != "" {
						fmt.Printf("    %s\n", note.Body)
					}
					continue
				}
				for _, item := range note.Subitems {
					mark := " "
					if item.IsChecked {
						mark = "x"
					}
					fmt.Printf("    [%s] (%d) %s\n", mark, item.SubitemID, item.Text)
				}
			}
			return nil
		},
	}
}

func newAddCommand(app *appContext) *cobra.Command {
	var noteType, body string
	var items []string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := app.engine()
			if err := engine.Load(cmd.Context()); err != nil {
				return err
			}
			note := domain.NewNote{Title: args[0], Type: domain.NoteType(noteType), Body: body}
			for _, text := range items {
				note.Subitems = append(note.Subitems, domain.NewSubitem{Text: text})
			}
			if err := engine.AddNote(cmd.Context(), note); err != nil {
				return err
			}
			notes := engine.Notes()
			fmt.Printf("created note %d\n", notes[len(notes)-1].NoteID)
			return nil
		},
	}
	cmd.Flags().StringVar(&noteType, "type", string(domain.NoteTypeFreetext), "note type: freetext or subitems")
	cmd.Flags().StringVar(&body, "body", "", "free-text body")
	cmd.Flags().StringArrayVar(&items, "item", nil, "initial checklist line (repeatable)")
	return cmd
}

func newRemoveCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <noteId>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine := app.engine()
			if err := engine.Load(cmd.Context()); err != nil {
				return err
			}
			return engine.DeleteNote(cmd.Context(), id)
		},
	}
}

func newTitleCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "title <noteId> <title>",
		Short: "Rename a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.engine().UpdateNoteTitle(cmd.Context(), id, args[1])
		},
	}
}

func newBodyCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "body <noteId> <text>",
		Short: "Replace a free-text note body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.engine().UpdateNoteBody(cmd.Context(), id, args[1])
		},
	}
}

func newItemCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage checklist lines",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <noteId> <text>",
			Short: "Append a checklist line",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				engine := app.engine()
				if err := engine.Load(cmd.Context()); err != nil {
					return err
				}
				return engine.AddSubitem(cmd.Context(), id, args[1])
			},
		},
		newItemCheckCommand(app, "check", true),
		newItemCheckCommand(app, "uncheck", false),
		&cobra.Command{
			Use:   "text <subitemId> <text>",
			Short: "Replace a checklist line's text",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				engine := app.engine()
				if err := engine.Load(cmd.Context()); err != nil {
					return err
				}
				return engine.UpdateSubitemText(cmd.Context(), id, args[1])
			},
		},
		&cobra.Command{
			Use:   "rm <subitemId>",
			Short: "Delete a checklist line",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				engine := app.engine()
				if err := engine.Load(cmd.Context()); err != nil {
					return err
				}
				return engine.DeleteSubitem(cmd.Context(), id)
			},
		},
	)
	return cmd
}

func newItemCheckCommand(app *appContext, use string, checked bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <subitemId>",
		Short: "Set a checklist line's checkbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine := app.engine()
			if err := engine.Load(cmd.Context()); err != nil {
				return err
			}
			return engine.UpdateSubitemChecked(cmd.Context(), id, checked)
		},
	}
}

func newMoveCommand(app *appContext) *cobra.Command {
	var to int
	cmd := &cobra.Command{
		Use:   "move <noteId>",
		Short: "Move a note to a new position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine := app.engine()
			if err := engine.Load(cmd.Context()); err != nil {
				return err
			}
			ids := engine.NoteIDs()
			if to < 0 || to >= len(ids) {
				return fmt.Errorf("position %d out of range 0-%d", to, len(ids)-1)
			}
			// Drive the same drag path the UI uses.
			controller := notesync.NewReorderController(engine)
			controller.DragStart(id)
			controller.DragOver(ids[to])
			return controller.DragEnd(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&to, "to", 0, "target position (zero-based)")
	return cmd
}

func newExportCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a server-side snapshot of all notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimSuffix(app.serverURL, "/")+"/notes/export", bytes.NewReader(nil))
			if err != nil {
				return err
			}
			if token := app.readToken(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			var out struct {
				Success bool   `json:"success"`
				Key     string `json:"key"`
				Error   string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("export failed: %s", out.Error)
			}
			fmt.Println(out.Key)
			return nil
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
