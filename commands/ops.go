package commands

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

type Operation int

const PORT_REGEX = "^[0-9]{2,5}$"

const (
	DEFAULT = iota
	// Start mining, infinite loop until explicit cancel.
	START
	// Restart mining when new tail replace the tail we mine on.
	RESTART
	// Stop mining completely.
	STOP
	// Mine a single block in the background.
	MINE
	// Add a new peer to this full node.
	ADD_PEER
	// Remove a peer by host and port.
	REMOVE_PEER
	// List all peers.
	LIST_PEER
	// Replace the local chain with the longest valid peer chain.
	RESOLVE
	// Print the balance of this node or of the given participant.
	BALANCE
	// List pending transactions.
	PENDING
	// Print chain height, pool size and resolution flag.
	STATUS
	// Show the blockchain.
	SHOW
)

// A command contains a operation and many arguments.
type Command struct {
	Op   Operation
	Args []string
}

func isValidAddress(host string, port string) bool {
	portRegex := regexp.MustCompile(PORT_REGEX)
	if !portRegex.MatchString(port) {
		return false
	}
	if host == "localhost" {
		return true
	}
	return net.ParseIP(host) != nil
}

func (c Command) IsValid() bool {
	switch c.Op {
	case START, RESTART, STOP, MINE, LIST_PEER, RESOLVE, PENDING, STATUS:
		return len(c.Args) == 0
	case ADD_PEER, REMOVE_PEER:
		if len(c.Args) != 2 {
			return false
		}
		return isValidAddress(c.Args[0], c.Args[1])
	case BALANCE:
		return len(c.Args) <= 1
	case SHOW:
		if len(c.Args) != 1 {
			return false
		}
		// depth must be a positive number.
		d, err := strconv.Atoi(c.Args[0])
		return err == nil && d > 0
	default:
		return false
	}
}

// Address joins the host and port arguments of a peer command.
func (c Command) Address() string {
	if len(c.Args) != 2 {
		return ""
	}
	return net.JoinHostPort(c.Args[0], c.Args[1])
}

// From string, create
func CreateCommand(s string) (Command, error) {
	// split command by space.
	ss := strings.Fields(s)
	if len(ss) == 0 {
		return Command{}, errors.New("command is empty")
	}
	cmd := Command{}
	switch ss[0] {
	case "start":
		cmd.Op = START
	case "restart":
		cmd.Op = RESTART
	case "stop":
		cmd.Op = STOP
	case "mine":
		cmd.Op = MINE
	case "add_peer":
		cmd.Op = ADD_PEER
	case "remove_peer":
		cmd.Op = REMOVE_PEER
	case "list_peer":
		cmd.Op = LIST_PEER
	case "resolve":
		cmd.Op = RESOLVE
	case "balance":
		cmd.Op = BALANCE
	case "pending":
		cmd.Op = PENDING
	case "status":
		cmd.Op = STATUS
	case "show":
		cmd.Op = SHOW
	}
	cmd.Args = ss[1:]
	if !cmd.IsValid() {
		return Command{}, errors.New("invalid command")
	}
	return cmd, nil
}

// Create a brand new command with default operation.
func NewDefaultCommand() Command {
	return Command{
		Op: DEFAULT,
	}
}

func (c Command) IsDefault() bool {
	return c.Op == DEFAULT
}
