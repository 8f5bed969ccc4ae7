package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lin/qichat/internal/config"
	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/ingest"
	"github.com/lin/qichat/internal/persist"
	"github.com/lin/qichat/internal/settings"
)

func sendCmd() *cobra.Command {
	var chatID string
	var filePath string
	var pageURL string

	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a one-shot message without the shell",
		Long: `Send a message and print the reply. The conversation is saved and can
be picked up later in the shell.

Examples:
  qichat send "explain goroutines"
  qichat send -c 01J8... "and channels?"       # continue a conversation
  qichat send -f report.pdf "总结这个文件"      # attach a file
  qichat send -u https://example.com "总结这个网页"`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
			defer cancel()

			paths := config.GetPaths()
			if err := config.EnsureDir(paths.Home); err != nil {
				exitOnError(err)
			}
			store := openStore()

			set, err := settings.Open(paths.SettingsDB)
			if err != nil {
				exitOnError(err)
			}
			defer set.Close()

			prov, err := buildProvider(config.GetEnv(), set)
			if err != nil {
				exitOnError(err)
			}

			var chat *domain.Conversation
			if chatID != "" {
				chat, err = store.Load(ctx, chatID)
				requireFound(err, chatID)
			} else {
				chat = domain.NewConversation()
			}

			if filePath != "" {
				att, err := ingest.AttachmentFromFile(filePath)
				if err != nil {
					exitOnError(err)
				}
				chat.AddAttachment(att)
			}

			if pageURL != "" {
				fetcher := ingest.NewWebFetcher()
				defer fetcher.Close()

				snap, err := fetcher.Snapshot(ctx, pageURL)
				if err != nil {
					exitOnError(fmt.Errorf("fetch %s: %w", pageURL, err))
				}
				chat.AddMessage(domain.NewMessage(domain.RoleSystem,
					fmt.Sprintf("网页内容 (%s - %s):\n%s", snap.URL, snap.Title, snap.Text)))
			}

			chat.AddMessage(domain.NewUserMessage(strings.Join(args, " ")))

			pm := persist.NewManager(store)
			pm.AutosaveOnMutation(ctx, chat)

			reply, err := prov.SendMessage(ctx, chat.Messages)
			if err != nil {
				exitOnError(err)
			}

			chat.AddMessage(domain.NewMessage(domain.RoleAssistant, reply))
			pm.AutosaveOnMutation(ctx, chat)

			fmt.Println(reply)
			fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", chat.ID)
		},
	}

	cmd.Flags().StringVarP(&chatID, "chat", "c", "", "Continue an existing conversation")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Attach a file")
	cmd.Flags().StringVarP(&pageURL, "url", "u", "", "Include a webpage snapshot as context")

	return cmd
}
