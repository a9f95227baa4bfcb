// Command client is a simple interactive test client for the game server.
// Each line read from stdin is sent as chat; "quit" exits.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/logging"
	"github.com/LemmyAI/tileserver/internal/protocol"
)

func main() {
	serverAddr := flag.String("addr", "localhost:7777", "server address")
	playerName := flag.String("name", "TestPlayer", "player name")
	password := flag.String("password", "", "server password")
	verbose := flag.Bool("v", false, "log every frame")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	log, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	conn, err := net.DialTimeout("tcp", *serverAddr, 5*time.Second)
	if err != nil {
		log.Fatal("dial failed", zap.String("addr", *serverAddr), zap.Error(err))
	}
	defer conn.Close()
	log.Info("connected", zap.String("addr", *serverAddr), zap.String("name", *playerName))

	send := func(p protocol.Payload) {
		if err := protocol.WriteMessage(conn, protocol.New(p)); err != nil {
			log.Fatal("write failed", zap.Stringer("type", p.Type()), zap.Error(err))
		}
	}
	send(protocol.ConnectRequest{Version: protocol.ServerVersion})

	c := &client{log: log, send: send, name: *playerName, password: *password, names: map[int]string{}}
	go func() {
		for {
			msg, _, err := protocol.ReadMessage(conn, 0)
			if err != nil {
				log.Info("disconnected", zap.Error(err))
				os.Exit(0)
			}
			c.handle(msg)
		}
	}()

	fmt.Println("Type a message and press Enter to chat. Type 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit":
			return
		}
		send(protocol.ChatMessage{Text: line})
	}
}

type client struct {
	log      *zap.Logger
	send     func(protocol.Payload)
	name     string
	password string
	id       int
	names    map[int]string
}

func (c *client) handle(msg protocol.Message) {
	c.log.Debug("received", zap.Stringer("type", msg.Type), zap.Int("len", msg.Len()))

	switch msg.Type {
	case protocol.MsgRequestPassword:
		if c.password == "" {
			c.log.Fatal("server requires a password, use -password")
		}
		c.send(protocol.SendPassword{Password: c.password})

	case protocol.MsgConnectionApproved:
		var p protocol.ConnectionApproved
		if c.decode(msg, &p) {
			c.id = p.ClientID
			c.log.Info("approved", zap.Int("client", c.id))
			c.send(protocol.PlayerInfo{ClientID: c.id, Name: c.name})
			c.send(protocol.RequestWorldInfo{})
		}

	case protocol.MsgWorldInfo:
		var p protocol.WorldInfo
		if c.decode(msg, &p) {
			c.log.Info("world",
				zap.String("name", p.Name),
				zap.Int("width", p.Width),
				zap.Int("height", p.Height),
				zap.Bool("day", p.DayTime))
		}

	case protocol.MsgPlayerInfo:
		var p protocol.PlayerInfo
		if c.decode(msg, &p) {
			c.names[p.ClientID] = p.Name
		}

	case protocol.MsgChatMessage:
		var p protocol.ChatMessage
		if c.decode(msg, &p) {
			from := "server"
			if p.ClientID != protocol.ServerClientID {
				from = c.names[p.ClientID]
				if p.ClientID == c.id {
					from = c.name
				}
			}
			fmt.Printf("<%s> %s\n", from, p.Text)
		}

	case protocol.MsgDisconnect:
		var p protocol.Disconnect
		if c.decode(msg, &p) {
			c.log.Warn("kicked", zap.String("reason", p.Reason))
		}
	}
}

func (c *client) decode(msg protocol.Message, p protocol.Unmarshaler) bool {
	if err := protocol.Unmarshal(msg, p); err != nil {
		c.log.Warn("bad payload", zap.Stringer("type", msg.Type), zap.Error(err))
		return false
	}
	return true
}
