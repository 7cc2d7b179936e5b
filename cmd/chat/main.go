package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat-server/internal/client"
	"github.com/vovakirdan/roomchat-server/internal/log"
)

func main() {
	var (
		server   string
		name     string
		room     string
		private  bool
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "roomchat",
		Short: "Terminal chat client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), server, name, room, private, logLevel)
		},
	}
	rootCmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	rootCmd.Flags().StringVar(&name, "name", "", "display name")
	rootCmd.Flags().StringVar(&room, "room", "lobby", "room name or private room id")
	rootCmd.Flags().BoolVar(&private, "private", false, "create a private room and join it")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "error", "log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server, name, room string, private bool, logLevel string) error {
	logger := log.New(logLevel)

	if private {
		id, err := createPrivateRoom(ctx, server)
		if err != nil {
			return fmt.Errorf("create private room: %w", err)
		}
		fmt.Printf("* created private room %s\n", id)
		room = id
	}

	wsURL := websocketURL(server, room)
	agent := client.New(wsURL, name, &console{room: room}, logger)

	go func() {
		if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "* session ended: %v\n", err)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := agent.Send(text); err != nil {
			fmt.Printf("* not delivered: %v\n", err)
		}
	}
	return scanner.Err()
}

func createPrivateRoom(ctx context.Context, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/room", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func websocketURL(server, room string) string {
	url := server
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/api/room/" + room + "/websocket"
}

// console renders the room to stdout.
type console struct {
	room string
}

func (c *console) HandleChat(name, text string, _ int64) {
	fmt.Printf("%s: %s\n", name, text)
}

func (c *console) HandleJoined(name string) {
	fmt.Printf("* %s joined\n", name)
}

func (c *console) HandleQuit(name string) {
	fmt.Printf("* %s left\n", name)
}

func (c *console) HandleReady(welcome bool) {
	if welcome {
		fmt.Printf("* Welcome to #%s. Names are not authenticated; anyone can claim any name.\n", c.room)
	}
}

func (c *console) HandleError(msg string) {
	fmt.Printf("* error: %s\n", msg)
}

func (c *console) HandleDisconnect() {
	fmt.Println("* disconnected, reconnecting...")
}
