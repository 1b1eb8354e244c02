package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pelusa-v/pelusa-chat-client/internal/client"
	"github.com/pelusa-v/pelusa-chat-client/internal/config"
	"github.com/pelusa-v/pelusa-chat-client/internal/dispatch"
	"github.com/pelusa-v/pelusa-chat-client/internal/normalize"
	"github.com/pelusa-v/pelusa-chat-client/internal/session"
	"github.com/pelusa-v/pelusa-chat-client/internal/transport"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

var (
	serverURL    string
	wsURL        string
	pollInterval time.Duration
	historyLimit int
	register     bool
	username     string
	email        string
	password     string
)

func main() {
	flag.StringVar(&serverURL, "server", "http://localhost:3000", "chat server base URL")
	flag.StringVar(&wsURL, "ws", "", "push connection URL (derived from -server when empty)")
	flag.DurationVar(&pollInterval, "poll-interval", config.DefaultPollInterval, "room list poll interval")
	flag.IntVar(&historyLimit, "history-limit", config.DefaultHistoryPageSize, "messages loaded when joining a room")
	flag.BoolVar(&register, "register", false, "create a new account instead of logging in")
	flag.StringVar(&username, "username", "", "username (register only)")
	flag.StringVar(&email, "email", "", "account email")
	flag.StringVar(&password, "password", "", "account password")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat] ", log.LstdFlags)

	cfg, err := config.NewConfig(serverURL, wsURL, pollInterval, historyLimit)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if email == "" || password == "" {
		logger.Fatal("-email and -password are required")
	}

	dispatcher := dispatch.NewDispatcher()
	api := transport.NewClient(cfg.BaseURL, logger)
	push := session.NewSession(cfg.WSURL, dispatcher, logger)
	chat := client.NewChatClient(cfg, api, push, dispatcher, logger)

	ctx := context.Background()

	var user types.User
	if register {
		user, err = chat.Register(ctx, username, email, password)
	} else {
		user, err = chat.Login(ctx, email, password)
	}
	if err != nil {
		logger.Fatal("auth:", err)
	}
	defer chat.Logout()

	fmt.Printf("connected as %s\n", user.Username)

	// Print incoming traffic for whichever room is active.
	printer := dispatcher.Subscribe(types.EventNewMessage, func(data json.RawMessage) {
		raw, err := normalize.Decode(data)
		if err != nil {
			return
		}
		msg := normalize.Message(raw)
		if room, ok := chat.ActiveRoom(); ok && msg.RoomId == room.Id {
			fmt.Printf("%s: %s\n", msg.Sender.Username, msg.Content)
		}
	})
	defer dispatcher.Unsubscribe(printer)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("commands: /rooms /join <id> /leave /create <name> [private] /refresh /quit")
	for {
		select {
		case sig := <-sigs:
			logger.Printf("received signal: %s\n", sig)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := handleLine(ctx, chat, strings.TrimSpace(line)); done {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, chat *client.ChatClient, line string) bool {
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		if err := chat.SendMessage(line); err != nil {
			fmt.Println("send:", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/rooms":
		for _, r := range chat.Rooms() {
			marker := " "
			if r.IsPrivate {
				marker = "*"
			}
			fmt.Printf("%s %-24s %s (%d members)\n", marker, r.Id, r.Name, r.MemberCount)
		}
	case "/join":
		if len(fields) < 2 {
			fmt.Println("usage: /join <room id>")
			return false
		}
		if err := chat.JoinRoom(ctx, fields[1]); err != nil {
			fmt.Println("join:", err)
			return false
		}
		printRoom(chat)
	case "/leave":
		if err := chat.LeaveRoom(ctx); err != nil {
			fmt.Println("leave:", err)
		}
	case "/create":
		if len(fields) < 2 {
			fmt.Println("usage: /create <name> [private]")
			return false
		}
		isPrivate := len(fields) > 2 && fields[2] == "private"
		room, err := chat.CreateRoom(ctx, fields[1], isPrivate)
		if err != nil {
			fmt.Println("create:", err)
			return false
		}
		if room.IsPrivate {
			fmt.Printf("private room created, share this code: %s\n", room.Id)
		} else {
			fmt.Printf("room %s created\n", room.Name)
		}
	case "/refresh":
		chat.RefreshRooms(ctx)
		fmt.Printf("%d rooms\n", len(chat.Rooms()))
	default:
		fmt.Println("unknown command:", fields[0])
	}

	return false
}

func printRoom(chat *client.ChatClient) {
	room, ok := chat.ActiveRoom()
	if !ok {
		return
	}

	fmt.Printf("joined %s\n", room.Name)
	for _, msg := range chat.Messages() {
		if msg.System {
			fmt.Printf("-- %s\n", msg.Content)
			continue
		}
		fmt.Printf("%s: %s\n", msg.Sender.Username, msg.Content)
	}
}
