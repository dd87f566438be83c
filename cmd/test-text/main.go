// Command test-text checks Live API connectivity with a single text turn.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/room4-2/OpenInterpret/gemini"
	"github.com/room4-2/OpenInterpret/transport"
)

func main() {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		slog.Error("GEMINI_API_KEY not set")
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := gemini.NewClient(ctx, apiKey, slog.Default())
	if err != nil {
		slog.Error("Failed to create client", "error", err)
		os.Exit(1)
	}

	opened := make(chan struct{})
	done := make(chan struct{}, 1)
	finish := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}
	conn, err := client.Dial(ctx, transport.Config{
		SystemInstruction: "You are a helpful assistant. Keep responses brief.",
		OutputTranscript:  true,
	}, transport.Callbacks{
		OnOpen: func() { close(opened) },
		OnMessage: func(msg *transport.Message) {
			for _, f := range msg.Audio {
				slog.Info("🔊 Received audio", "base64_bytes", len(f.Data), "mime", f.MIMEType)
			}
			if msg.OutputTranscript != "" {
				slog.Info("💬 Received transcript", "text", msg.OutputTranscript)
			}
			if msg.TurnComplete {
				slog.Info("✅ Turn complete")
				finish()
			}
		},
		OnError: func(err error) {
			slog.Error("❌ Error", "error", err)
			finish()
		},
	})
	if err != nil {
		slog.Error("Failed to dial", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	select {
	case <-opened:
	case <-done:
		os.Exit(1)
	case <-time.After(15 * time.Second):
		slog.Error("Timeout connecting")
		os.Exit(1)
	}

	// Send a text message
	if err := conn.(*gemini.Proxy).SendText("Hello! Say hi back in one sentence."); err != nil {
		slog.Error("Failed to send text", "error", err)
		os.Exit(1)
	}

	// Wait for response
	slog.Info("Waiting for response...")
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		slog.Warn("⏰ Timeout waiting for response")
	}
	slog.Info("Done")
}
