package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"peer-chat/client"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = `commands:
  /chats                 list your chats
  /dm <user>             open (or create) the direct chat with user
  /group <name> <u1,u2>  create a group
  /open <chatId>         open a chat; plain lines are then sent to it
  /close                 close the open chat
  /history [cursor]      show a page of the open chat
  /read <messageId>      mark a message of the open chat as read
  /notifications         list pending notifications
  /quit`

var (
	info     = color.New(color.FgCyan)
	incoming = color.New(color.FgGreen, color.OpBold)
	notice   = color.New(color.FgYellow)
	failure  = color.New(color.FgRed)
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	cfg, err := client.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	color.Enable = cfg.Colours
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := client.NewAggregator()
	inbox := client.NewInbox(aggregator, func(m chat.Message) {
		fmt.Println(incoming.Render(fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format(time.Kitchen), m.SenderID, m.Content)))
	})
	c := client.New(cfg, inbox, client.Handlers{
		OnConnected: func(id event.ConnectionID) {
			fmt.Println(info.Render("connected as " + cfg.UserID))
		},
		OnTyping: func(p event.TypingPayload) {
			if p.ChatID == inbox.Selected() {
				fmt.Println(notice.Render(string(p.UserID) + " is typing..."))
			}
		},
		OnError: func(p event.ErrorPayload) {
			fmt.Println(failure.Render(p.Kind + ": " + p.Message))
		},
	}, logger)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println(info.Render(usage))
	for {
		select {
		case <-ctx.Done():
			return exitOK, <-runErr
		case err = <-runErr:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				stop()
				return exitOK, <-runErr
			}
			if err = handle(ctx, c, inbox, aggregator, line); err != nil {
				fmt.Println(failure.Render(err.Error()))
			}
		}
	}
}

func handle(ctx context.Context, c *client.Client, inbox *client.Inbox, aggregator *client.Aggregator, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	selected := inbox.Selected()
	switch fields[0] {
	case "/chats":
		chats, err := c.FetchChats(ctx)
		if err != nil {
			return err
		}
		for _, ch := range chats {
			fmt.Println(info.Render(describe(ch)))
		}
	case "/dm":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /dm <user>")
		}
		ch, err := c.AccessChat(ctx, chat.UserID(fields[1]))
		if err != nil {
			return err
		}
		return open(c, inbox, ch.ID)
	case "/group":
		if len(fields) != 3 {
			return fmt.Errorf("usage: /group <name> <u1,u2>")
		}
		var users []chat.UserID
		for _, u := range strings.Split(fields[2], ",") {
			users = append(users, chat.UserID(u))
		}
		ch, err := c.CreateGroup(ctx, fields[1], users)
		if err != nil {
			return err
		}
		fmt.Println(info.Render("created " + describe(ch)))
	case "/open":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /open <chatId>")
		}
		return open(c, inbox, chat.ChatID(fields[1]))
	case "/close":
		if selected != "" {
			inbox.Close()
			return c.Leave(selected)
		}
	case "/history":
		if selected == "" {
			return fmt.Errorf("no chat is open")
		}
		cursor := ""
		if len(fields) > 1 {
			cursor = fields[1]
		}
		page, next, err := c.GetMessages(ctx, selected, cursor)
		if err != nil {
			return err
		}
		for _, m := range page {
			fmt.Printf("%s %s: %s\n", info.Render(m.ID.String()[:8]), m.SenderID, m.Content)
		}
		if next != nil {
			fmt.Println(notice.Render("older: /history " + *next))
		}
	case "/read":
		if selected == "" || len(fields) != 2 {
			return fmt.Errorf("usage: /read <messageId> with a chat open")
		}
		id, err := uuid.Parse(fields[1])
		if err != nil {
			return err
		}
		_, err = c.MarkRead(ctx, selected, id)
		return err
	case "/notifications":
		pending := aggregator.Pending()
		fmt.Println(notice.Render(fmt.Sprintf("%d unread", len(pending))))
		for _, m := range pending {
			fmt.Printf("  %s in %s: %s\n", m.SenderID, m.ChatID, m.Content)
		}
	default:
		if selected == "" {
			return fmt.Errorf("open a chat first")
		}
		_ = c.StopTyping(selected)
		_, err := c.SendMessage(ctx, selected, line)
		return err
	}
	return nil
}

func open(c *client.Client, inbox *client.Inbox, chatID chat.ChatID) error {
	if previous := inbox.Selected(); previous != "" && previous != chatID {
		_ = c.Leave(previous)
	}
	cleared := inbox.Open(chatID)
	fmt.Println(info.Render(fmt.Sprintf("opened %s (%d notifications cleared)", chatID, cleared)))
	return c.Join(chatID)
}

func describe(ch chat.Chat) string {
	name := ch.Name
	if !ch.IsGroup {
		name = fmt.Sprintf("%s & %s", ch.Members[0], ch.Members[1])
	}
	return fmt.Sprintf("%s  %s  (%d members)", ch.ID, name, len(ch.Members))
}
