package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Whoami(ctx context.Context, args []string) error

	Forms(ctx context.Context, args []string) error
	Form(ctx context.Context, args []string) error
	Sites(ctx context.Context, args []string) error
	Site(ctx context.Context, args []string) error

	Start(ctx context.Context, args []string) error
	Answer(ctx context.Context, args []string) error
	Meta(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Files(ctx context.Context, args []string) error
	Detach(ctx context.Context, args []string) error
	Complete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Push(ctx context.Context, args []string) error
	Pull(ctx context.Context, args []string) error
	Catalog(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

// errUsage is returned by handlers called with the wrong arguments. The REPL
// prints the usage line instead of an error.
type errUsage string

func (e errUsage) Error() string { return "usage: " + string(e) }

const (
	helpLoggedOut = "Available commands: login, forms, sites, status, exit"
	helpLoggedIn  = `Available commands:
  forms | form <id> | sites | site <code>
  start <formID> | answer <subID> <questionID> <value> | meta <subID>
  attach <subID> <stepID> <path> [questionID] | files <subID> | detach <fileID>
  complete <subID> | list [status] | show <subID> | retry <subID> | delete <subID>
  sync | push | pull | catalog | status | export <subID>
  whoami | logout | exit`
)

// runREPL reads commands line by line from reader, dispatches them to a and
// prints handler errors. It returns on EOF or when the user types "exit" or
// "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("is> %s > ", statusFn()))

		line, readErr := reader.ReadString('\n')
		if readErr != nil && (!errors.Is(readErr, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var h func(context.Context, []string) error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "login":
			h = a.Login
		case "logout":
			h = a.Logout
		case "whoami":
			h = a.Whoami
		case "forms":
			h = a.Forms
		case "form":
			h = a.Form
		case "sites":
			h = a.Sites
		case "site":
			h = a.Site
		case "start":
			h = a.Start
		case "answer":
			h = a.Answer
		case "meta":
			h = a.Meta
		case "attach":
			h = a.Attach
		case "files":
			h = a.Files
		case "detach":
			h = a.Detach
		case "complete":
			h = a.Complete
		case "l", "list":
			h = a.List
		case "show":
			h = a.Show
		case "retry":
			h = a.Retry
		case "delete":
			h = a.Delete
		case "export":
			h = a.Export
		case "sync":
			h = a.Sync
		case "push":
			h = a.Push
		case "pull":
			h = a.Pull
		case "catalog":
			h = a.Catalog
		case "status":
			h = a.Status
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err := h(ctx, args); err != nil {
			var u errUsage
			if errors.As(err, &u) {
				printlnFn(u.Error())
			} else {
				printlnFn("Error:", err)
			}
		}

		if readErr != nil {
			// EOF after a final unterminated line
			return
		}
	}
}
