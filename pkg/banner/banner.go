package banner

import (
	"fmt"

	"chatkit/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██╗  ██╗██╗████████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██║ ██╔╝██║╚══██╔══╝
██║     ███████║███████║   ██║   █████╔╝ ██║   ██║
██║     ██╔══██║██╔══██║   ██║   ██╔═██╗ ██║   ██║
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██╗██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚═╝   ╚═╝
`

// PrintDevServer prints the startup banner for the bundled stub backend.
func PrintDevServer(cfg config.DevServeConfig, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", cfg.Address)
	fmt.Printf("DB Path:  %s\n", cfg.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if cfg.Retention.Enabled {
		fmt.Printf("Retention: cron %q, period %s\n", cfg.Retention.Cron, cfg.Retention.Period.Duration())
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /api/activities/{id}/messages  - List an activity's messages")
	fmt.Println("POST /api/activities/{id}/messages  - Append a message")
	fmt.Println("POST /api/ai/chat                   - Advisor chat (stub reply)")
	fmt.Println("GET  /docs/                         - API docs (swagger UI)")
	fmt.Println("GET  /metrics                       - Prometheus metrics")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://localhost%s/api/activities/demo/messages'\n", cfg.Address)
	fmt.Printf("curl -X POST 'http://localhost%s/api/activities/demo/messages' -d '{\"senderId\":\"u1\",\"senderName\":\"Uma\",\"type\":\"text\",\"content\":\"hello\"}'\n", cfg.Address)
}

// PrintChat prints the startup banner for the interactive chat watcher.
func PrintChat(backendURL, activityID, userID string) {
	fmt.Print(banner)
	fmt.Println("== Chat =======================================================")
	fmt.Printf("Backend:  %s\n", backendURL)
	fmt.Printf("Activity: %s\n", activityID)
	fmt.Printf("User:     %s\n", userID)
}
