package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lin/qichat/internal/config"
	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/history"
	"github.com/lin/qichat/internal/render"
	"github.com/lin/qichat/internal/settings"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Conversation history",
		Long:  "Browse, search and manage saved conversations",
	}

	// qichat history [list]
	var limit int
	var folderID string
	var onlyStarred bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			ctx := context.Background()

			chats, err := store.List(ctx)
			if err != nil {
				exitOnError(err)
			}
			starred, err := store.Starred(ctx)
			if err != nil {
				exitOnError(err)
			}

			if onlyStarred {
				chats = filterChats(chats, starred)
			}
			if folderID != "" {
				chats = filterChats(chats, folderMembers(store, folderID))
				if len(chats) == 0 {
					render.Stdout().Empty("No conversations in this folder")
					return
				}
			}
			if limit > 0 && len(chats) > limit {
				chats = chats[:limit]
			}

			r := render.New(pretty)
			fmt.Print(r.ConversationList(chats, starred))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of conversations to show")
	listCmd.Flags().StringVar(&folderID, "folder", "", "Only conversations filed in this folder")
	listCmd.Flags().BoolVar(&onlyStarred, "starred", false, "Only starred conversations")

	// qichat history show <id>
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a full conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()

			chat, err := store.Load(context.Background(), args[0])
			requireFound(err, args[0])

			r := render.New(pretty)
			fmt.Print(r.Conversation(chat))
		},
	}

	// qichat history search <query>
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation titles and content",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			ctx := context.Background()
			query := strings.Join(args, " ")

			chats, err := store.Search(ctx, query)
			if err != nil {
				exitOnError(err)
			}
			starred, err := store.Starred(ctx)
			if err != nil {
				exitOnError(err)
			}

			r := render.New(pretty)
			fmt.Print(r.SearchResults(query, chats, starred))
		},
	}

	// qichat history delete <id>
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			ctx := context.Background()

			_, err := store.Load(ctx, args[0])
			requireFound(err, args[0])
			if err := store.Delete(ctx, args[0]); err != nil {
				exitOnError(err)
			}

			clearLastActiveIf(ctx, args[0])
			render.Stdout().Println("✓ Deleted: %s", args[0])
		},
	}

	// qichat history rename <id> <title>
	renameCmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			title := strings.Join(args[1:], " ")

			if err := store.Rename(context.Background(), args[0], title); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Renamed: %s", render.Truncate(title, 50))
		},
	}

	// qichat history star <id> / unstar <id>
	starCmd := &cobra.Command{
		Use:   "star <id>",
		Short: "Star a conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			ctx := context.Background()

			_, err := store.Load(ctx, args[0])
			requireFound(err, args[0])
			if err := store.SetStarred(ctx, args[0], true); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("★ Starred: %s", args[0])
		},
	}
	unstarCmd := &cobra.Command{
		Use:   "unstar <id>",
		Short: "Remove the star from a conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			if err := store.SetStarred(context.Background(), args[0], false); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Unstarred: %s", args[0])
		},
	}

	cmd.AddCommand(listCmd, showCmd, searchCmd, deleteCmd, renameCmd, starCmd, unstarCmd, folderCmd())
	return cmd
}

// folderCmd manages named folders. Folders only group conversations; no
// record files move, and deleting a folder keeps its conversations.
func folderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Organize conversations into folders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List folders",
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()

			folders, err := store.Folders(context.Background())
			if err != nil {
				exitOnError(err)
			}

			w := render.Stdout()
			for _, f := range folders {
				w.Item("%-26s  %-16s %d chats", f.ID, f.Name, len(f.Chats))
			}
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a folder",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			name := strings.Join(args, " ")

			id, err := store.CreateFolder(context.Background(), name)
			if err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Folder created: %s (%s)", name, id)
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <folder-id> <name>",
		Short: "Rename a folder",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			name := strings.Join(args[1:], " ")

			if err := store.RenameFolder(context.Background(), args[0], name); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Folder renamed: %s", name)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete a folder (its conversations are kept)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()

			if err := store.DeleteFolder(context.Background(), args[0]); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Folder deleted: %s", args[0])
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <folder-id> <chat-id>",
		Short: "File a conversation into a folder",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			ctx := context.Background()

			_, err := store.Load(ctx, args[1])
			requireFound(err, args[1])
			if err := store.AddToFolder(ctx, args[0], args[1]); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Filed %s into %s", args[1], args[0])
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <folder-id> <chat-id>",
		Short: "Take a conversation out of a folder",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()

			if err := store.RemoveFromFolder(context.Background(), args[0], args[1]); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Removed %s from %s", args[1], args[0])
		},
	}

	cmd.AddCommand(listCmd, createCmd, renameCmd, deleteCmd, addCmd, removeCmd)
	return cmd
}

// filterChats keeps the conversations whose id is in the set, preserving
// order.
func filterChats(chats []*domain.Conversation, keep map[string]bool) []*domain.Conversation {
	out := make([]*domain.Conversation, 0, len(chats))
	for _, c := range chats {
		if keep[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// folderMembers resolves a folder id to the set of conversation ids filed in
// it, exiting with a friendly message for an unknown folder.
func folderMembers(store *history.Store, folderID string) map[string]bool {
	folders, err := store.Folders(context.Background())
	if err != nil {
		exitOnError(err)
	}

	for _, f := range folders {
		if f.ID == folderID {
			set := make(map[string]bool, len(f.Chats))
			for _, id := range f.Chats {
				set[id] = true
			}
			return set
		}
	}

	fmt.Fprintf(os.Stderr, "Error: no folder %s\n", folderID)
	os.Exit(1)
	return nil
}

// clearLastActiveIf drops the resume target when it points at the deleted
// conversation. Failing to clear is harmless; startup falls back when the
// record is gone.
func clearLastActiveIf(ctx context.Context, id string) {
	set, err := settings.Open(config.GetPaths().SettingsDB)
	if err != nil {
		return
	}
	defer set.Close()

	last, err := set.LastActiveChat(ctx)
	if err == nil && last == id {
		_ = set.ClearLastActiveChat(ctx)
	}
}

// requireFound maps store not-found errors to a friendlier message.
func requireFound(err error, id string) {
	if domain.IsNotFound(err) {
		fmt.Fprintf(os.Stderr, "Error: no conversation %s\n", id)
		os.Exit(1)
	}
	if err != nil {
		exitOnError(err)
	}
}
