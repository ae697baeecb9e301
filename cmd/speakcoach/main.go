package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"speakcoach/internal/app"
	"speakcoach/internal/capture"
	"speakcoach/internal/server"
	"speakcoach/internal/tui"
)

const version = "1.0.0"

func loadConfig(cmd *cobra.Command) (app.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	return cfg, path, err
}

// newPipeline assembles the full stack from config. mock swaps both network
// clients for canned ones so everything runs offline.
func newPipeline(cfg app.Config, mock bool) (*app.Pipeline, error) {
	logger := app.NewQuietLogger()

	var (
		transcriber app.Transcriber
		analyzer    app.Analyzer
		err         error
	)
	if mock {
		transcriber = &app.MockTranscriber{}
		analyzer = &app.MockAnalyzer{}
	} else {
		transcriber, err = app.NewTranscriber(cfg, logger)
		if err != nil {
			return nil, err
		}
		analyzer = app.NewGroqAnalyzer(cfg.APIKey, cfg, logger)
	}

	history, err := app.OpenHistoryStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return app.NewPipeline(cfg, transcriber, analyzer, history, logger), nil
}

func runTUI(cmd *cobra.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mock, _ := cmd.Flags().GetBool("mock")

	pipeline, err := newPipeline(cfg, mock)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	meter := capture.NewMeter()
	var source capture.Source
	if mock {
		source = &capture.ReaderSource{Data: silentSample(), MIME: "audio/webm"}
	} else {
		source = capture.NewCommandSource(cfg.CaptureCommand, "")
	}
	recorder := capture.NewRecorder(source, meter, nil)

	conv := app.NewConversation(pipeline, app.NewCommandSpeaker(nil))

	// The watcher lives as long as the program; hot reload is optional and a
	// missing config file just disables it.
	watch := func(onChange func(app.Config)) error {
		_, _ = app.WatchConfig(path, app.NewQuietLogger(), onChange)
		return nil
	}

	return tui.Run(pipeline, recorder, meter, conv, watch)
}

// silentSample gives the mock recorder something to "capture".
func silentSample() []byte {
	return make([]byte, 32*1024)
}

func main() {
	root := &cobra.Command{
		Use:     "speakcoach",
		Short:   "Practice speaking English with AI feedback",
		Long:    "speakcoach records your speech, transcribes it, and returns grammar\nand fluency feedback from an English-teacher model.\n\nRun without arguments for the interactive TUI.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "config file path (default: user config dir)")
	root.Flags().Bool("mock", false, "run fully offline with canned transcription and feedback")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local analysis/transcription proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			logger := app.NewLogger(cfg.LogJSON)

			srv := server.New(cfg, nil, logger)
			watcher, err := app.WatchConfig(path, logger, srv.SetConfig)
			if err == nil {
				defer watcher.Close()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	serveCmd.Flags().String("addr", "127.0.0.1:8787", "listen address")
	root.AddCommand(serveCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Analyze one text and print the feedback as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.LogJSON)

			level, _ := cmd.Flags().GetString("level")
			roleplay, _ := cmd.Flags().GetString("roleplay")
			conversational, _ := cmd.Flags().GetBool("conversation")
			if level == "" {
				level = cfg.Level
			}
			if roleplay == "" {
				roleplay = cfg.Roleplay
			}

			analyzer := app.NewGroqAnalyzer(cfg.APIKey, cfg, logger)
			result, err := analyzer.Analyze(cmd.Context(), app.AnalyzeRequest{
				Text:           strings.Join(args, " "),
				Level:          level,
				Roleplay:       roleplay,
				Conversational: conversational,
			})
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	analyzeCmd.Flags().String("level", "", "student level: beginner|intermediate|advanced")
	analyzeCmd.Flags().String("roleplay", "", "scenario: general|restaurant|interview|travel|medical")
	analyzeCmd.Flags().Bool("conversation", false, "conversational mode: the model replies in character")
	root.AddCommand(analyzeCmd)

	transcribeCmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a recorded audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.LogJSON)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			transcriber, err := app.NewTranscriber(cfg, logger)
			if err != nil {
				return err
			}
			text, err := transcriber.Transcribe(cmd.Context(), capture.Blob{
				Data: data,
				MIME: mimeForFile(args[0]),
			})
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	root.AddCommand(transcribeCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved practice sessions",
	}
	historyListCmd := &cobra.Command{
		Use:   "list",
		Short: "Print saved sessions as JSON, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := app.OpenHistoryStore(cfg, app.NewQuietLogger())
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	historyClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := app.OpenHistoryStore(cfg, app.NewQuietLogger())
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("history cleared")
			return nil
		},
	}
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// mimeForFile guesses the audio container from the extension, defaulting to
// the webm container the capture path produces.
func mimeForFile(path string) string {
	switch {
	case strings.HasSuffix(path, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(path, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(path, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(path, ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(path, ".flac"):
		return "audio/flac"
	default:
		return "audio/webm"
	}
}
