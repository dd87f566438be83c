// Command test streams an audio file through the capture encoder to the live
// service and writes the spoken replies to a raw PCM file.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/gemini"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transport"
)

// replyWriter appends decoded replies to a raw 16-bit PCM file.
type replyWriter struct {
	mu    sync.Mutex
	file  *os.File
	bytes int
	rate  int
}

func (w *replyWriter) write(frame audio.Frame) {
	buf, err := audio.Decode(frame, audio.OutputRate)
	if err != nil {
		slog.Warn("⚠️ Dropped reply frame", "error", err)
		return
	}
	pcm := make([]byte, 2*len(buf.Samples))
	for i, s := range buf.Samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(audio.Float32ToPCM16(s)))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.rate = buf.Rate
	if _, err := w.file.Write(pcm); err != nil {
		slog.Error("❌ Failed to write reply", "error", err)
		return
	}
	w.bytes += len(pcm)
}

func main() {
	// Flags
	audioFile := flag.String("file", "examples/user.pcm", "Audio file to send (PCM or WAV)")
	rate := flag.Int("rate", 16000, "Sample rate of raw PCM input")
	outFile := flag.String("out", "reply.pcm", "Where to write the reply audio (raw s16le)")
	language := flag.String("language", "", "Target language code, empty to transcribe only")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for the reply")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY not set")
		os.Exit(1)
	}

	samples, fileRate, err := loadAudioFile(*audioFile, *rate)
	if err != nil {
		slog.Error("Failed to load audio", "error", err)
		os.Exit(1)
	}
	enc, err := audio.NewEncoder(fileRate, cfg.TargetRate, cfg.ChunkSize)
	if err != nil {
		slog.Error("Unsupported input rate", "rate", fileRate, "error", err)
		os.Exit(1)
	}

	out, err := os.Create(*outFile)
	if err != nil {
		slog.Error("Failed to create output", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	replies := &replyWriter{file: out}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, slog.Default())
	if err != nil {
		slog.Error("Failed to create client", "error", err)
		os.Exit(1)
	}

	lang, translate := config.FindLanguage(cfg.Languages, *language)
	tcfg := transport.Config{
		Model:             cfg.LiveModel,
		Voice:             cfg.Voice,
		SystemInstruction: session.Instruction(lang, translate),
		InputTranscript:   true,
		OutputTranscript:  true,
	}
	if translate {
		tcfg.LanguageCode = lang.Code
	}

	opened := make(chan struct{})
	done := make(chan string, 1)
	finish := func(reason string) {
		select {
		case done <- reason:
		default:
		}
	}
	conn, err := client.Dial(ctx, tcfg, transport.Callbacks{
		OnOpen: func() { close(opened) },
		OnMessage: func(msg *transport.Message) {
			for _, f := range msg.Audio {
				replies.write(f)
			}
			if msg.InputTranscript != "" {
				fmt.Printf("🎤 %s\n", msg.InputTranscript)
			}
			if msg.OutputTranscript != "" {
				fmt.Printf("🔊 %s\n", msg.OutputTranscript)
			}
			if msg.TurnComplete {
				finish("turn complete")
			}
		},
		OnClose: func(reason string) { finish("closed: " + reason) },
		OnError: func(err error) { finish("error: " + err.Error()) },
	})
	if err != nil {
		slog.Error("Failed to dial", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	select {
	case <-opened:
		slog.Info("✅ Connected!")
	case reason := <-done:
		slog.Error("Connection failed", "reason", reason)
		os.Exit(1)
	case <-time.After(15 * time.Second):
		slog.Error("Timeout connecting")
		os.Exit(1)
	}

	// Handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Feed 20ms blocks at real-time pace, like a microphone would
	block := fileRate / 50
	sent := 0
	for i := 0; i < len(samples); i += block {
		end := min(i+block, len(samples))
		for _, f := range enc.Encode(samples[i:end]) {
			if err := conn.Send(f); err != nil {
				slog.Error("Send error", "error", err)
				os.Exit(1)
			}
			sent++
		}
		time.Sleep(20 * time.Millisecond)
	}
	if p, ok := conn.(*gemini.Proxy); ok {
		_ = p.EndAudioStream()
	}
	slog.Info("📤 Audio sent, waiting for response...", "frames", sent, "pending_samples", enc.Pending())

	select {
	case reason := <-done:
		slog.Info("Finished", "reason", reason)
	case <-interrupt:
		slog.Info("👋 Interrupted, closing...")
	case <-time.After(*timeout):
		slog.Warn("⏰ Timeout waiting for response")
	}

	replies.mu.Lock()
	defer replies.mu.Unlock()
	slog.Info("💾 Reply written", "file", *outFile, "bytes", replies.bytes, "rate", replies.rate)
}

// loadAudioFile loads a PCM or WAV file as float samples. WAV files carry
// their own rate; raw files use defaultRate.
func loadAudioFile(path string, defaultRate int) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	rate := defaultRate
	// Check if it's a WAV file (starts with "RIFF")
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		rate = int(binary.LittleEndian.Uint32(data[24:28]))
		slog.Info("📁 Detected WAV file, skipping header", "rate", rate)
		data = data[44:]
	} else {
		slog.Info("📁 Detected raw PCM file", "rate", rate)
	}
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}

	samples, err := audio.PCM16BytesToFloat32(data)
	if err != nil {
		return nil, 0, err
	}
	return samples, rate, nil
}
