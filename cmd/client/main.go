// Command client is a terminal chat for one order and one counterparty,
// driving the same engine the marketplace apps embed.
//
//	client <order-id> <counterparty-id>
//
// Lines are sent as messages. /read <message-id>, /translate on|off,
// /typing and /history are commands.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"order-chat/client"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	_ = godotenv.Load()
	config, err := client.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if len(args) != 2 {
		return exitConfig, errors.New("usage: client <order-id> <counterparty-id>")
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(config.FeedAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return exitRuntime, fmt.Errorf("feed connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	api := client.NewAPIClient(config.APIURL, config.Token, config.RequestTimeout)
	push := client.NewPushTransport(logger, config.APIURL, config.Token, api)
	feed := client.NewFeedTransport(logger, conn, config.Token)
	engine := client.NewEngine(logger, config.UserID, api, push, []contract.Transport{push, feed}, config.Engine())
	defer engine.Teardown()

	session, err := engine.ResolveChat(ctx, chat.OrderID(args[0]), chat.CounterpartyID(args[1]))
	if err != nil {
		return exitRuntime, fmt.Errorf("resolve chat: %w", err)
	}
	if err := engine.SetActiveChat(ctx, chat.OrderChat(session.ID)); err != nil {
		return exitRuntime, fmt.Errorf("open chat: %w", err)
	}
	status, _ := engine.Status(session.ID)
	color.Info.Printf("Chat %s, order %s with %s [%s]\n", session.ID, session.OrderID, session.CounterpartyID, status)
	for _, m := range engine.Messages(session.ID) {
		printMessage(config.UserID, m)
	}

	go render(ctx, engine, config.UserID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	typing := false
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if typing {
				typing = false
				_ = engine.SetTyping(ctx, session.ID, false)
			}
			if err := handle(ctx, engine, session.ID, line, &typing); err != nil {
				color.Error.Println(err)
			}
		}
	}
}

func handle(ctx context.Context, engine *client.Engine, chatID chat.ChatID, line string, typing *bool) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		_, err := engine.Send(ctx, chatID, line)
		return err
	}
	switch fields[0] {
	case "/read":
		if len(fields) != 2 {
			return errors.New("usage: /read <message-id>")
		}
		return engine.MarkRead(ctx, fields[1])
	case "/translate":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return errors.New("usage: /translate on|off")
		}
		return engine.ToggleTranslation(ctx, chatID, fields[1] == "on")
	case "/typing":
		*typing = true
		return engine.SetTyping(ctx, chatID, true)
	case "/history":
		messages, err := engine.List(ctx, chatID)
		for _, m := range messages {
			printMessage("", m)
		}
		return err
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func render(ctx context.Context, engine *client.Engine, userID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-engine.TransportErrors():
			color.Warn.Printf("Realtime paths down (%v), retrying\n", err)
		case evt := <-engine.Notifications():
			switch p := evt.Payload.(type) {
			case event.MessagePayload:
				printMessage(userID, p.ToMessage(evt.ChatID))
			case event.TypingPayload:
				if p.IsTyping {
					color.Comment.Printf("%s is typing...\n", p.UserID)
				}
			case event.ReadPayload:
				color.Comment.Printf("%s read %s\n", p.ReaderID, p.MessageID)
			case event.StatusPayload:
				switch {
				case p.Status.IsTerminal():
					color.Error.Printf("Chat is now %s, sending is closed for good\n", p.Status)
				case !p.Status.IsActive():
					color.Warn.Printf("Chat is now %s\n", p.Status)
				default:
					color.Info.Printf("Chat is %s again\n", p.Status)
				}
			case event.TranslationPayload:
				color.Comment.Printf("Translation enabled: %t\n", p.Enabled)
			}
		}
	}
}

func printMessage(userID string, m chat.Message) {
	who := color.FgCyan.Render(m.SenderID)
	if m.SenderID == userID {
		who = color.FgGreen.Render("you")
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04:05"), who, m.Text)
	if m.TranslatedText != "" {
		line += color.FgGray.Render(" (" + m.TranslatedText + ")")
	}
	if m.IsRead {
		line += " ✓"
	}
	fmt.Printf("%s  %s\n", line, color.FgDarkGray.Render(m.ID))
}
