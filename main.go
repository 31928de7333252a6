package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	settingsPath string
	debugMode    bool
	noLog        bool
	imageURL     string
	caption      string
)

var rootCmd = &cobra.Command{
	Use:   "market-poster",
	Short: "Publish market news and images to Facebook and Instagram",
	Long: `Fetches market news from RSS feeds and posts it to a Facebook Page in English
and Tamil, or publishes a fixed image to an Instagram business account.
Each outcome is logged to a Google Sheet when GOOGLE_SHEETS_ID is set.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			SetDebugMode(true)
		}
		loadDotEnv()
	},
}

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Post the top market news item in every configured language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := LoadSettings(settingsOverrides())
		if err != nil {
			return err
		}

		workflow, err := buildNewsWorkflow(cmd.Context(), settings, LoadCredentials(os.Getenv))
		if err != nil {
			return err
		}

		summary := workflow.Run(cmd.Context())
		for _, a := range summary.Attempts {
			if a.Result.OK() {
				log.Printf("✓ %s: %s", a.Language, a.Result.PostID)
			} else {
				log.Printf("✗ %s: %v", a.Language, a.Result.Err)
			}
		}
		return nil
	},
}

var instagramCmd = &cobra.Command{
	Use:   "instagram",
	Short: "Publish the configured image to Instagram",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := LoadSettings(settingsOverrides())
		if err != nil {
			return err
		}
		if imageURL != "" {
			settings.Instagram.ImageURL = imageURL
		}
		if caption != "" {
			settings.Instagram.Caption = caption
		}

		workflow, err := buildImageWorkflow(cmd.Context(), settings, LoadCredentials(os.Getenv))
		if err != nil {
			return err
		}
		return workflow.Run(cmd.Context())
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print Instagram account insights as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := LoadSettings(settingsOverrides())
		if err != nil {
			return err
		}

		publisher, err := NewInstagramPublisher(settings, LoadCredentials(os.Getenv))
		if err != nil {
			return err
		}

		insights, err := publisher.Insights(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(insights, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding insights: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a settings YAML file (must exist)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noLog, "no-log", false, "Do not log outcomes to Google Sheets")

	instagramCmd.Flags().StringVar(&imageURL, "image-url", "", "Image URL to publish (overrides settings)")
	instagramCmd.Flags().StringVar(&caption, "caption", "", "Caption to publish (overrides settings)")

	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(instagramCmd)
	rootCmd.AddCommand(insightsCmd)
}

func settingsOverrides() *ConfigOverrides {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	return overrides
}

// loadDotEnv loads .env into the environment; a missing file is fine
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not load .env: %v", err)
	}
}

func newResultLogger(ctx context.Context, settings *Settings, creds Credentials) ResultLogger {
	if noLog {
		return NopLogger{}
	}
	return NewSheetsLogger(ctx, settings, creds)
}

func needsTranslation(languages []LanguageSettings) bool {
	for _, lang := range languages {
		if lang.Translate {
			return true
		}
	}
	return false
}

// buildNewsWorkflow validates credentials and assembles the news components
func buildNewsWorkflow(ctx context.Context, settings *Settings, creds Credentials) (*NewsWorkflow, error) {
	publisher, err := NewFacebookPublisher(settings, creds)
	if err != nil {
		return nil, err
	}

	formatter, err := NewFormatter(settings)
	if err != nil {
		return nil, err
	}

	var transformer *Transformer
	if needsTranslation(settings.Languages) {
		backend, err := newTranslator(settings, creds)
		if err != nil {
			return nil, err
		}
		transformer = NewTransformer(backend, settings.TranslationTimeout())
	}

	return NewNewsWorkflow(
		NewFeedSource(settings),
		formatter,
		transformer,
		publisher,
		newResultLogger(ctx, settings, creds),
	), nil
}

// buildImageWorkflow validates credentials and assembles the image components
func buildImageWorkflow(ctx context.Context, settings *Settings, creds Credentials) (*ImageWorkflow, error) {
	publisher, err := NewInstagramPublisher(settings, creds)
	if err != nil {
		return nil, err
	}
	if settings.Instagram.ImageURL == "" {
		return nil, missing("instagram.image_url")
	}

	return NewImageWorkflow(
		NewStaticSource(settings.Instagram.ImageURL, settings.Instagram.Caption),
		publisher,
		newResultLogger(ctx, settings, creds),
		settings.Instagram.Language,
	), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
