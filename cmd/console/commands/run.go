package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/room4-2/OpenInterpret/app"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/session"
)

var showMeter bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Live interpretation on the local microphone and speaker",
	Long: `Live interpretation on the local microphone and speaker.

The session starts right away. Type a command and press enter:
  s, start        start or restart the session
  x, stop         stop the session
  l, lang CODE    switch target language (stops a running session)
  l, lang         switch to transcription only
  h, history      print the transcript so far
  q, quit         exit

Examples:
  console run --language ja-JP --meter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cmd.Flags().Changed("language") {
			if language != "" {
				if _, ok := config.FindLanguage(cfg.Languages, language); !ok {
					return fmt.Errorf("unknown language %q, see 'console languages'", language)
				}
			}
			cfg.Language = language
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := newPrinter(cmd.OutOrStdout(), showMeter)
		a, err := app.New(ctx, cfg, nil, p, slog.Default())
		if err != nil {
			p.Close()
			return err
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.Session.Run(ctx)
		}()
		a.Session.Start()

		go readCommands(cmd.InOrStdin(), a.Session, p, stop)

		<-done
		p.Close()
		return a.Close()
	},
}

func init() {
	runCmd.Flags().StringVarP(&language, "language", "l", "", "target language code (empty: transcribe only)")
	runCmd.Flags().BoolVar(&showMeter, "meter", false, "show the microphone level")
}

func readCommands(in io.Reader, s *session.Session, p *printer, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "s", "start":
			s.Start()
		case "x", "stop":
			s.Stop()
		case "l", "lang":
			code := ""
			if len(fields) > 1 {
				code = fields[1]
			}
			if err := s.SetLanguage(code); err != nil {
				p.emit(line{text: styles.failed.Render("ERROR") + " " + err.Error()})
			}
		case "h", "history":
			for _, t := range s.History() {
				p.emit(line{text: renderTurn(t)})
			}
		case "q", "quit", "exit":
			quit()
			return
		default:
			p.emit(line{text: styles.dim.Render("unknown command " + fields[0])})
		}
	}
	// stdin closed
	quit()
}
