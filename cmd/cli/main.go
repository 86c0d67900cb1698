package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bryscus/mr-mister/announce"
	"github.com/bryscus/mr-mister/config"
	"github.com/bryscus/mr-mister/version"

	"golang.org/x/term"
)

const (
	envBroker   = "MMR_BROKER"
	envClientID = "MMR_CLIENT_ID"
)

var errUsage = errors.New("usage")

func main() {
	// Load .env file before parsing flags
	loadEnvFile(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		os.Exit(2) // usage already printed
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	err := dispatch(ctx, args, stdout, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mmr-cli", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Debug logging")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmd, rest := "version", []string(nil)
	if fs.NArg() > 0 {
		cmd, rest = fs.Arg(0), fs.Args()[1:]
	}

	switch cmd {
	case "version":
		return versionCmd(rest, stdout, stderr)
	case "info":
		return infoCmd(stdout)
	case "announce":
		return announceCmd(ctx, rest, stdout, stderr, logger)
	case "compare":
		return compareCmd(rest, stdout, stderr)
	case "help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// parseFlags routes flag package output through printUsage so -h shows the
// usage once. Returns flag.ErrHelp for -h and errUsage for bad flags.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	err := fs.Parse(args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flag.ErrHelp):
		return flag.ErrHelp
	default:
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Mr. Mister CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mmr-cli [-v] [command] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version [-json]            Print version banner (default)")
	fmt.Fprintln(w, "  info                       List every identity field")
	fmt.Fprintln(w, "  announce [flags]           Publish identity to MQTT broker")
	fmt.Fprintln(w, "  compare <a> <b>            Compare two version strings")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Announce flags:")
	fmt.Fprintln(w, "  -broker host:port          (or MMR_BROKER env var / .env)")
	fmt.Fprintln(w, "  -client id                 (or MMR_CLIENT_ID env var / .env)")
	fmt.Fprintln(w, "  -topic t                   Override announcement topic")
	fmt.Fprintln(w, "  -timeout dur               Session timeout")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  mmr-cli version -json")
	fmt.Fprintln(w, "  mmr-cli announce -broker 192.168.1.10:1883 -client yard-1")
	fmt.Fprintln(w, "  mmr-cli compare 0.0.0.1 0.0.1.0")
}

func versionCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(version.Get())
	}

	banner := version.Banner()
	if isTerminal(stdout) {
		// Bold program name on interactive terminals
		banner = "\x1b[1m" + version.ProgramName + "\x1b[0m" + strings.TrimPrefix(banner, version.ProgramName)
	}
	fmt.Fprintln(stdout, banner)
	return nil
}

func infoCmd(stdout io.Writer) error {
	info := version.Get()
	fmt.Fprintf(stdout, "  Program:  %s\n", info.Program)
	fmt.Fprintf(stdout, "  Author:   %s\n", info.Author)
	fmt.Fprintf(stdout, "  Web:      %s\n", info.WebLink)
	fmt.Fprintf(stdout, "  Version:  %s\n", info.Version)
	fmt.Fprintf(stdout, "  Major:    %d\n", info.Major)
	fmt.Fprintf(stdout, "  Minor:    %d\n", info.Minor)
	fmt.Fprintf(stdout, "  Revision: %d\n", info.Revision)
	fmt.Fprintf(stdout, "  Build:    %d\n", info.Build)
	fmt.Fprintf(stdout, "  Git SHA:  %s\n", orUnknown(info.GitSHA))
	fmt.Fprintf(stdout, "  Built:    %s\n", orUnknown(info.BuildDate))
	return nil
}

func announceCmd(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("announce", flag.ContinueOnError)
	broker := fs.String("broker", "", "MQTT broker host:port")
	client := fs.String("client", "", "MQTT client ID")
	topic := fs.String("topic", "", "Announcement topic")
	timeout := fs.Duration("timeout", config.AnnounceTimeout(), "Session timeout")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	brokerAddr := resolve(*broker, envBroker, "")
	if brokerAddr == "" {
		addr, err := config.BrokerAddr()
		if err != nil {
			return fmt.Errorf("no broker configured: %w", err)
		}
		brokerAddr = addr.String()
	}
	clientID := resolve(*client, envClientID, config.ClientID())
	if *topic == "" {
		*topic = announce.Topic(config.TopicPrefix(), clientID)
	}

	pub, err := announce.NewPublisher(announce.Options{
		Broker:   brokerAddr,
		ClientID: clientID,
		Topic:    *topic,
		Timeout:  *timeout,
	}, logger)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, version.Get()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Announced %s to %s (%s)\n", version.String(), brokerAddr, pub.Topic())
	return nil
}

func compareCmd(args []string, stdout, stderr io.Writer) error {
	if len(args) != 2 {
		printUsage(stderr)
		return errUsage
	}
	a, err := version.Parse(args[0])
	if err != nil {
		return fmt.Errorf("%q: %w", args[0], err)
	}
	b, err := version.Parse(args[1])
	if err != nil {
		return fmt.Errorf("%q: %w", args[1], err)
	}
	switch a.Compare(b) {
	case -1:
		fmt.Fprintln(stdout, "older")
	case 1:
		fmt.Fprintln(stdout, "newer")
	default:
		fmt.Fprintln(stdout, "same")
	}
	return nil
}

// resolve picks a setting by priority: flag > env (.env already loaded) > fallback
func resolve(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist or can't be read, that's fine
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
