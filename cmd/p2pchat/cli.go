package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ankesh2004/p2p-chat/internal/console"
	"github.com/Ankesh2004/p2p-chat/internal/server"
	"github.com/Ankesh2004/p2p-chat/pkg/netutil"
)

// cli is the operator side of a node: it reads commands and drives the server.
type cli struct {
	srv   *server.ChatServer
	con   *console.Console
	log   *zap.Logger
	myIPs func() ([]string, error)
}

func newCLI(srv *server.ChatServer, con *console.Console, log *zap.Logger) *cli {
	return &cli{
		srv:   srv,
		con:   con,
		log:   log.Named("cli"),
		myIPs: netutil.LocalIPv4s,
	}
}

// commandLoop runs the interactive terminal until `exit` or EOF on in,
// then shuts the server down.
func (c *cli) commandLoop(in io.Reader) {
	reader := bufio.NewReader(in)

	for {
		c.con.Prompt()
		input, err := reader.ReadString('\n')
		if input = strings.TrimSpace(input); input != "" {
			if !c.dispatch(input) {
				c.srv.Shutdown()
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn("reading stdin", zap.Error(err))
			}
			// stdin is gone, nobody can type exit anymore
			c.con.Printf("Exiting...")
			c.srv.Shutdown()
			return
		}
	}
}

// dispatch runs one trimmed command line. It returns false on exit.
func (c *cli) dispatch(input string) bool {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch cmd {
	case "help":
		c.help()

	case "myip":
		ips, err := c.myIPs()
		if err != nil {
			c.con.Errorf("Failed to get IP addresses.")
			c.log.Warn("myip", zap.Error(err))
			break
		}
		if len(ips) == 0 {
			c.con.Printf("No network addresses found.")
			break
		}
		c.con.Printf("IP addresses of this machine: %s", strings.Join(ips, " "))

	case "myport":
		c.con.Printf("My Port: %d", c.srv.MyPort())

	case "connect":
		if len(args) != 2 {
			c.con.Printf("Usage: connect <destination> <port>")
			break
		}
		port, err := strconv.Atoi(args[1])
		if err != nil || port <= 0 || port > 65535 {
			c.con.Printf("Invalid port: %s", args[1])
			break
		}
		// the server reports success and failure itself
		c.srv.Connect(args[0], port) //nolint:errcheck

	case "list":
		c.con.Printf("Active Connections:")
		for _, e := range c.srv.List() {
			c.con.Printf("%d: %s", e.Index, c.con.Highlight(fmt.Sprintf("%s %d", e.IP, e.Port)))
		}

	case "terminate":
		if len(args) != 1 {
			c.con.Printf("Usage: terminate <connection id>")
			break
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			c.con.Errorf("Invalid connection ID.")
			break
		}
		if err := c.srv.Terminate(id); err != nil {
			c.con.Errorf("Invalid connection ID.")
			break
		}
		c.con.Printf("Connection terminated.")

	case "send":
		idText, msg, _ := strings.Cut(rest, " ")
		msg = strings.TrimLeft(msg, " \t")
		if idText == "" || msg == "" {
			c.con.Printf("Usage: send <connection id> <message>")
			break
		}
		id, err := strconv.Atoi(idText)
		if err != nil {
			c.con.Errorf("Invalid connection ID.")
			break
		}
		switch err := c.srv.Send(id, []byte(msg)); {
		case errors.Is(err, server.ErrInvalidIndex):
			c.con.Errorf("Invalid connection ID.")
		case err != nil:
			c.con.Errorf("Failed to send message to connection %d.", id)
		default:
			c.con.Printf("Message sent to connection %d", id)
		}

	case "exit":
		c.con.Printf("Exiting...")
		return false

	default:
		c.con.Printf("Unknown command. Type 'help' for usage.")
	}
	return true
}

func (c *cli) help() {
	c.con.Printf("Available Commands:")
	c.con.Printf("help - Show command manual")
	c.con.Printf("myip - Show the IP address of this process")
	c.con.Printf("myport - Show the listening port of this process")
	c.con.Printf("connect <destination> <port> - Connect to a peer")
	c.con.Printf("list - List all active connections")
	c.con.Printf("terminate <connection id> - Terminate a specific connection")
	c.con.Printf("send <connection id> <message> - Send message to a peer")
	c.con.Printf("exit - Close all connections and terminate this process")
}
