package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatkit/pkg/banner"
	"chatkit/pkg/client"
	"chatkit/pkg/config"
	"chatkit/pkg/engine"
	"chatkit/pkg/logger"
	"chatkit/pkg/models"
	"chatkit/pkg/store"
)

func init() {
	chatCmd.AddCommand(chatWatchCmd, chatSendCmd)
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Activity chat: watch the message list, send messages",
}

// buildEngine assembles a store, optional cache, REST client, and engine
// from the effective config.
func buildEngine(cfg config.Config) (*engine.Engine, *store.Store, *store.Cache, error) {
	if cfg.Backend.BaseURL == "" {
		return nil, nil, nil, fmt.Errorf("backend base URL is required (--backend or CHATKIT_BACKEND_URL)")
	}
	if cfg.Chat.ActivityID == "" {
		return nil, nil, nil, fmt.Errorf("activity id is required (--activity or CHATKIT_ACTIVITY_ID)")
	}
	api := client.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout.Duration())
	st := store.New()
	var cache *store.Cache
	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		c, err := store.OpenCache(cfg.Cache.Path)
		if err != nil {
			logger.Warn("cache_open_failed", "path", cfg.Cache.Path, "error", err)
		} else {
			cache = c
		}
	}
	eng := engine.New(api, st, cache, engine.Options{
		ActivityID:     cfg.Chat.ActivityID,
		Interval:       cfg.Chat.PollInterval.Duration(),
		RequestTimeout: cfg.Backend.RequestTimeout.Duration(),
		FailAfterPolls: cfg.Chat.FailAfterPolls,
		SendRPS:        cfg.Chat.SendRPS,
		SendBurst:      cfg.Chat.SendBurst,
	})
	return eng, st, cache, nil
}

var chatWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the activity chat and print new messages as they land",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, st, cache, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}
		userID, _ := actingUser()
		banner.PrintChat(cfg.Backend.BaseURL, cfg.Chat.ActivityID, userID)

		eng.Prime()
		printMessages(st.Active(), 0)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cancel := eng.Start(ctx)
		defer cancel()

		seen := st.Len()
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				active := st.Active()
				if len(active) > seen {
					printMessages(active, seen)
				}
				seen = len(active)
			}
		}
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send one text message to the activity chat",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, _, cache, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}
		userID, userName := actingUser()

		ctx, cancelTO := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancelTO()

		draft := models.Message{
			SenderID:   userID,
			SenderName: userName,
			Type:       models.TypeText,
			Content:    strings.Join(args, " "),
		}
		clientID, err := eng.Send(ctx, draft)
		if err != nil {
			return fmt.Errorf("send failed (client id %s): %w", clientID, err)
		}
		// one fetch so the send is confirmed before the process exits
		eng.PollOnce(ctx)
		if state, ok := eng.State(clientID); ok {
			fmt.Printf("sent (unconfirmed, state=%s)\n", state)
		} else {
			fmt.Println("sent and confirmed")
		}
		return nil
	},
}

func printMessages(msgs []models.Message, from int) {
	for i := from; i < len(msgs); i++ {
		m := msgs[i]
		body := m.Content
		switch m.Type {
		case models.TypePhoto:
			body = "[photo] " + m.PhotoURL
		case models.TypeFile:
			body = "[file] " + m.FileName
		case models.TypeAudio:
			body = fmt.Sprintf("[audio %ds] %s", m.AudioDuration, m.AudioURL)
		case models.TypeLocation:
			if m.Location != nil {
				body = fmt.Sprintf("[location] %.5f,%.5f", m.Location.Latitude, m.Location.Longitude)
			}
		}
		pin := ""
		if m.IsPinned {
			pin = " 📌"
		}
		fmt.Printf("[%s] %s%s: %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderName, pin, body)
	}
}
