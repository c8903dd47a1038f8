package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatkit/pkg/client"
	"chatkit/pkg/config"
	"chatkit/pkg/session"
)

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsChatCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "AI advisor sessions: list, chat, delete",
}

func buildSessionStore(cfg config.Config) (*session.Store, error) {
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required (--backend or CHATKIT_BACKEND_URL)")
	}
	api := client.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout.Duration())
	userID, userName := actingUser()
	return session.New(api, userID, userName), nil
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List advisor sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := buildSessionStore(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		sessions, err := st.List(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%-28s %-35s %3d msgs  %s\n",
				s.ID, s.Title, len(s.Messages), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionsChatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Chat with the advisor; omit the id to start a new session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := buildSessionStore(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if _, err := st.List(ctx); err != nil {
			return err
		}
		if len(args) == 1 {
			if err := st.SwitchTo(ctx, args[0]); err != nil {
				return err
			}
		}

		fmt.Println("type a message, or /quit to leave")
		sc := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !sc.Scan() {
				return sc.Err()
			}
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			reply, err := st.Send(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "advisor error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id|all]",
	Short: "Delete one advisor session, or all of them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := buildSessionStore(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()
		if _, err := st.List(ctx); err != nil {
			return err
		}
		if args[0] == "all" {
			if err := st.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Println("all sessions deleted")
			return nil
		}
		if err := st.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("session deleted")
		return nil
	},
}
