package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/projection"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	RelayURL string `env:"RELAY_URL,default=ws://localhost:3001/ws"`
	Identity string `env:"RELAY_IDENTITY,required=true"`
	Token    string `env:"RELAY_TOKEN"`
	LogLevel string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects, registers the identity, then sends every stdin line.
// "@bob hello" is a private message to bob, anything else is public.
func run() (int, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := client.DefaultOptions()
	options.Token = config.Token
	c, err := client.Dial(ctx, log, config.RelayURL, options)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = c.Close() }()

	if err := c.Register(config.Identity); err != nil {
		return exitRuntime, fmt.Errorf("failed to register %s: %w", config.Identity, err)
	}
	color.Green.Printf(">>> Connected to %s as %s (Ctrl+C to quit)\n", config.RelayURL, config.Identity)

	timeline := projection.NewTimeline(config.Identity)
	go func() {
		for msg := range c.Messages() {
			if timeline.Consume(msg) {
				printMessage(config.Identity, msg)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-c.Done():
			if err := c.Err(); err != nil {
				return exitRuntime, fmt.Errorf("connection lost: %w", err)
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := send(c, line); err != nil {
				return exitRuntime, err
			}
		}
	}
}

func send(c *client.Client, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if receiver, body, ok := strings.Cut(line, " "); ok && strings.HasPrefix(receiver, "@") {
		return c.SendPrivate(strings.TrimPrefix(receiver, "@"), body)
	}
	return c.SendPublic(line)
}

func printMessage(owner string, msg domain.Message) {
	at := msg.Timestamp.Local().Format(time.TimeOnly)
	if msg.Visibility == domain.Private {
		peer := msg.Sender
		if msg.Sender == owner {
			peer = "-> " + msg.Receiver
		}
		color.Magenta.Printf("[%s] (private) %s: %s\n", at, peer, msg.Body)
		return
	}
	color.Cyan.Printf("[%s] %s: ", at, msg.Sender)
	fmt.Println(msg.Body)
}
