package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/arenabeat/resultgate/internal/backoff"
	"github.com/arenabeat/resultgate/internal/compose"
)

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

type profile struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

type agentCard struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	Version      string `json:"version"`
	Capabilities struct {
		Streaming         bool `json:"streaming"`
		PushNotifications bool `json:"pushNotifications"`
	} `json:"capabilities"`
	Skills []struct {
		ID   string   `json:"id"`
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	} `json:"skills"`
}

type streamEvent struct {
	ID     any `json:"id"`
	Result struct {
		Kind   string `json:"kind"`
		TaskID string `json:"taskId"`
		Final  bool   `json:"final"`
		Status struct {
			State     string `json:"state"`
			Message   string `json:"message"`
			Timestamp string `json:"timestamp"`
		} `json:"status"`
		Artifacts []struct {
			Name  string `json:"name"`
			Parts []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"artifacts"`
	} `json:"result"`
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func (c *client) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

// openStream issues the JSON-RPC streaming request. The caller owns the
// response body; closing it is what signals abandonment to the server.
func (c *client) openStream(ctx context.Context, requestID string) (*http.Response, error) {
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      requestID,
		"method":  "message/stream",
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("stream rejected (%d): %s", resp.StatusCode, string(out))
	}
	return resp, nil
}

func main() {
	baseURL := getenv("RESULTGATE_BASE_URL", "http://localhost:9009")
	token := getenv("RESULTGATE_TOKEN", "")
	profileName := getenv("RESULTGATE_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "resultgate",
		Short: "resultgate CLI",
		Long:  "resultgate CLI for watching evaluation streams and wiring up benchmark matches.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL of the resultgate server")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token for the streaming endpoint")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("RESULTGATE_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !flags.Changed("token") {
			if v := strings.TrimSpace(os.Getenv("RESULTGATE_TOKEN")); v != "" {
				token = v
			} else if prof.Token != "" {
				token = prof.Token
			}
		}
		if !flags.Changed("profile") && profileName == "" && active != "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(cardCmd(&baseURL, &token, ui))
	root.AddCommand(healthCmd(&baseURL, ui))
	root.AddCommand(runCmd(&baseURL, &token, ui))
	root.AddCommand(composeCmd(ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL  string
		token    string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if baseURL == "" {
				baseURL = prof.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:9009"
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
				if token == "" {
					t, err := promptSecret("Token (optional)")
					if err != nil {
						return err
					}
					token = t
				}
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			if token != "" {
				prof.Token = strings.TrimSpace(token)
			}

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}

			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the resultgate server")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the streaming endpoint")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func cardCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Fetch the agent card",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching agent card..."
			spin.Start()
			status, resp, err := c.get(cmd.Context(), "/.well-known/agent-card.json")
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			if raw {
				fmt.Println(string(resp))
				return nil
			}
			var card agentCard
			if err := json.Unmarshal(resp, &card); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s %s %s\n", ui.title(card.Name), card.Version, ui.dim(card.URL))
			fmt.Printf("%s %s\n", ui.info("•"), card.Description)
			fmt.Printf("%s Streaming: %v | Push: %v\n", ui.info("•"), card.Capabilities.Streaming, card.Capabilities.PushNotifications)
			for _, s := range card.Skills {
				fmt.Printf("%s Skill %s (%s) %s\n", ui.info("•"), s.Name, s.ID, ui.dim(strings.Join(s.Tags, ", ")))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw JSON card")
	return cmd
}

func healthCmd(baseURL *string, ui *ui) *cobra.Command {
	var (
		attempts int
		baseWait time.Duration
		maxWait  time.Duration
	)
	cmd := &cobra.Command{
		Use:     "health",
		Short:   "Wait for the server to report ready",
		Example: "resultgate health --attempts 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, "")
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Waiting for " + *baseURL + "/status ..."
			if term.IsTerminal(int(os.Stdout.Fd())) {
				spin.Start()
				defer spin.Stop()
			}

			var lastErr error
			for attempt := 0; attempt < attempts; attempt++ {
				status, resp, err := c.get(cmd.Context(), "/status")
				if err == nil && status == http.StatusOK {
					spin.Stop()
					var out struct {
						Status string `json:"status"`
						Uptime string `json:"uptime"`
					}
					_ = json.Unmarshal(resp, &out)
					fmt.Printf("%s Server ready (uptime %s)\n", ui.ok("[OK]"), emptyOr(out.Uptime, "?"))
					return nil
				}
				if err != nil {
					lastErr = err
				} else {
					lastErr = fmt.Errorf("status %d", status)
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(backoff.Delay(backoff.FullJitter, baseWait, maxWait, attempt, rng)):
				}
			}
			return fmt.Errorf("server not ready after %d attempts: %w", attempts, lastErr)
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 20, "Probe attempts before giving up")
	cmd.Flags().DurationVar(&baseWait, "base-wait", 500*time.Millisecond, "Base wait between probes")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 5*time.Second, "Max wait between probes")
	return cmd
}

func runCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		requestID string
		outputDir string
		retries   int
	)
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Open a streaming session and wait for the result",
		Example: "resultgate run --output ./artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c := newClient(*baseURL, *token)
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var resp *http.Response
			var err error
			for attempt := 0; ; attempt++ {
				resp, err = c.openStream(ctx, requestID)
				if err == nil {
					break
				}
				if attempt >= retries {
					return fmt.Errorf("connect: %w", err)
				}
				fmt.Fprintf(os.Stderr, "%s connect failed, retrying: %v\n", ui.warn("[WARN]"), err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff.Delay(backoff.FullJitter, time.Second, 10*time.Second, attempt, rng)):
				}
			}
			defer resp.Body.Close()

			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			if interactive {
				spin.Suffix = " Waiting for result..."
				spin.Start()
				defer spin.Stop()
			}

			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			heartbeats := 0
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var ev streamEvent
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
					return fmt.Errorf("bad event frame: %w", err)
				}

				if !ev.Result.Final {
					heartbeats++
					if interactive {
						spin.Suffix = fmt.Sprintf(" Task %s %s (%d heartbeats)", ev.Result.TaskID, ev.Result.Status.State, heartbeats)
					}
					continue
				}

				spin.Stop()
				if ev.Result.Status.State != "completed" {
					return fmt.Errorf("session ended: %s (%s)", ev.Result.Status.State, emptyOr(ev.Result.Status.Message, "no detail"))
				}
				fmt.Printf("%s Task %s completed\n", ui.ok("[OK]"), ev.Result.TaskID)
				return saveArtifacts(ev, outputDir, ui)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("stream read: %w", err)
			}
			if ctx.Err() != nil {
				fmt.Fprintln(os.Stderr, ui.warn("[WARN]"), "Session abandoned")
				return nil
			}
			return errors.New("stream closed without a terminal event")
		},
	}
	cmd.Flags().StringVar(&requestID, "id", "", "JSON-RPC request id (default random)")
	cmd.Flags().StringVar(&outputDir, "output", "", "Directory to save result artifacts (default print to stdout)")
	cmd.Flags().IntVar(&retries, "retries", 3, "Connection retries before giving up")
	return cmd
}

func saveArtifacts(ev streamEvent, outputDir string, ui *ui) error {
	for _, art := range ev.Result.Artifacts {
		var text strings.Builder
		for _, p := range art.Parts {
			if p.Kind == "text" {
				text.WriteString(p.Text)
			}
		}
		if outputDir == "" {
			fmt.Println(text.String())
			continue
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
		name := filepath.Base(emptyOr(art.Name, "result.json"))
		dst := filepath.Join(outputDir, name)
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		bar := progressbar.DefaultBytes(int64(text.Len()), "Saving "+name)
		_, err = io.Copy(io.MultiWriter(f, bar), strings.NewReader(text.String()))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s Saved %s\n", ui.ok("[OK]"), dst)
	}
	return nil
}

func composeCmd(ui *ui) *cobra.Command {
	var (
		scenarioPath string
		outputPath   string
	)
	cmd := &cobra.Command{
		Use:     "compose",
		Short:   "Render a docker-compose file from a scenario",
		Example: "resultgate compose --scenario scenario.yaml --output docker-compose.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(scenarioPath) == "" {
				return errors.New("scenario is required")
			}
			s, err := compose.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			f := compose.Render(s)
			if outputPath == "-" {
				data, err := f.Marshal()
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			}
			if err := compose.Write(f, outputPath); err != nil {
				return err
			}
			fmt.Printf("%s Wrote %s\n", ui.ok("[OK]"), outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML path")
	cmd.Flags().StringVar(&outputPath, "output", "docker-compose.yml", "Output path ('-' for stdout)")
	return cmd
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No client timeout: streaming sessions outlive any fixed bound.
		// Cancellation comes from the request context.
		httpClient: &http.Client{},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func isLocalURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "localhost" || host == "127.0.0.1"
}

func helpTemplate(ui *ui) string {
	title := ui.title("resultgate")
	return fmt.Sprintf(`%s — CLI for resultgate

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  resultgate init
  resultgate health --base-url http://localhost:9009
  resultgate run --output ./artifacts
  resultgate card
  resultgate compose --scenario scenario.yaml

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("RESULTGATE_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".resultgate", "config.yaml")
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := termReadPassword()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func termReadPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		return []byte(strings.TrimSpace(line)), err
	}
	return term.ReadPassword(fd)
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("RESULTGATE_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func emptyOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
