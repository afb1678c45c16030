// Package main tails the live training progress feed: it connects to
// the control server's websocket endpoint, prints one line per update,
// and reconnects with backoff when the stream drops.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// The server pings every 30s; a stream with no frames for 90s is dead.
const readTimeout = 90 * time.Second

func main() {
	loadEnvFile()

	url := flag.String("url", envOr("WATCH_URL", "ws://localhost:8080/api/progress/ws"), "Progress feed endpoint")
	rawJSON := flag.Bool("json", false, "Print raw JSON updates instead of formatted lines")
	reconnectDelay := flag.Duration("reconnect-delay", time.Second, "Initial reconnect backoff")
	maxReconnectDelay := flag.Duration("max-reconnect-delay", 30*time.Second, "Reconnect backoff ceiling")
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log.Info("watching progress feed", logger.String("url", *url))

	delay := *reconnectDelay
	for {
		delivered, err := tail(ctx, *url, *rawJSON)
		if ctx.Err() != nil {
			log.Info("watch stopped")
			return
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Info("stream closed by server, reconnecting",
				logger.Duration("retry_in", delay))
		} else if err != nil {
			log.Warn("connection lost",
				logger.Error(err),
				logger.Duration("retry_in", delay))
		}

		// A connection that delivered updates was healthy; start the
		// backoff over.
		if delivered > 0 {
			delay = *reconnectDelay
		}

		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > *maxReconnectDelay {
			delay = *maxReconnectDelay
		}
	}
}

// tail connects once and prints updates until the stream breaks or the
// context ends. Returns how many updates the connection delivered.
func tail(ctx context.Context, url string, rawJSON bool) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(payload string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	// Unblock ReadMessage when the context ends: say goodbye, then
	// close the socket.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	delivered := 0
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		delivered++

		if rawJSON {
			fmt.Println(string(msg))
			continue
		}
		var u domain.ProgressUpdate
		if err := json.Unmarshal(msg, &u); err != nil {
			continue
		}
		printUpdate(&u)
	}
}

func printUpdate(u *domain.ProgressUpdate) {
	fmt.Printf("%s  ep %4d  match %5d  eps %.4f  win %.4f  roi %+.4f  entry %.4f  %s\n",
		time.UnixMilli(u.TimestampMs).UTC().Format("15:04:05"),
		u.Episode, u.MatchIndex, u.Epsilon, u.WinRate, u.ROI, u.EntryRate, u.SessionID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
