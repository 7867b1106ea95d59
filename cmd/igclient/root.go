package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igclient/pkg/auth"
	"igclient/pkg/config"
	"igclient/pkg/cookies"
	"igclient/pkg/fetch"
	"igclient/pkg/inspect"
	"igclient/pkg/instagram"
	"igclient/pkg/logger"
	"igclient/pkg/publish"
	"igclient/pkg/ratelimit"
)

var (
	flagConfig     string
	flagOutput     string
	flagSessionID  string
	flagCSRFToken  string
	flagCookieFile string
	flagLogLevel   string
	flagUsername   string
)

var rootCmd = &cobra.Command{
	Use:           "igclient",
	Short:         "Instagram client for fetching and publishing media",
	Long:          "igclient fetches posts, stories and highlights and publishes photos, reels and comments through the Instagram web API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "path to config file")
	pf.StringVarP(&flagOutput, "output", "o", "", "output directory for downloads")
	pf.StringVar(&flagSessionID, "session-id", "", "Instagram session id cookie")
	pf.StringVar(&flagCSRFToken, "csrf-token", "", "Instagram csrf token")
	pf.StringVar(&flagCookieFile, "cookie-file", "", "path to the cookie file")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVarP(&flagUsername, "username", "u", "", "account to act as")
}

// app bundles the wired pipelines for one command invocation.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	session *instagram.Session
	fetch   *fetch.Pipeline
	publish *publish.Pipeline
}

// newApp loads configuration and wires the session and pipelines.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig, map[string]interface{}{
		"session-id":  flagSessionID,
		"csrf-token":  flagCSRFToken,
		"output":      flagOutput,
		"cookie-file": flagCookieFile,
		"log-level":   flagLogLevel,
	})
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	var store cookies.Store
	if passphrase := os.Getenv("IGCLIENT_COOKIE_PASSPHRASE"); passphrase != "" {
		store = cookies.NewEncryptedFileStore(cfg.Instagram.CookieFile, passphrase)
	} else {
		store = cookies.NewFileStore(cfg.Instagram.CookieFile)
	}

	opts := []instagram.Option{
		instagram.WithChallengePrompter(&terminalPrompter{}),
		instagram.WithRateLimiter(ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, 10)),
	}
	manager := auth.NewManager(auth.NewKeyringStore())
	if account, err := manager.Resolve(flagUsername); err == nil {
		opts = append(opts, instagram.WithCredentials(account.Username, account.Password))
	} else if flagUsername != "" {
		log.WithField("username", flagUsername).Warn("no saved credentials, run `igclient login` first")
	}

	session, err := instagram.NewSession(&cfg.Instagram, store, log, opts...)
	if err != nil {
		return nil, err
	}

	fetchPipeline := fetch.New(session, cfg, log)
	publishPipeline := publish.New(session, inspect.NewFFProbe(log), fetchPipeline, cfg, log)

	return &app{
		cfg:     cfg,
		log:     log,
		session: session,
		fetch:   fetchPipeline,
		publish: publishPipeline,
	}, nil
}

// terminalPrompter collects checkpoint input on stdin.
type terminalPrompter struct{}

func (t *terminalPrompter) SelectVerifyMethod(stepData map[string]interface{}) (string, error) {
	fmt.Println("Login checkpoint required. Available methods: Email (1), SMS (0)")
	for key, value := range stepData {
		fmt.Printf("  %s: %v\n", key, value)
	}
	return t.readLine("Enter choice (0 or 1): ")
}

func (t *terminalPrompter) EnterSecurityCode() (string, error) {
	return t.readLine("Enter the code: ")
}

func (t *terminalPrompter) readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
