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

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error

	Chats(ctx context.Context) error
	Open(ctx context.Context, ref string) error
	Search(ctx context.Context, username string) error
	Add(ctx context.Context) error

	Type(text string) error
	Write(ctx context.Context) error
	Emoji(name string) error
	Backspace() error
	Image(path string) error
	Voice(ctx context.Context, path string) error
	Pending() error
	Clear() error
	Send(ctx context.Context) error

	Show(ctx context.Context) error
	Detail(ctx context.Context) error
	Block(ctx context.Context) error
	Media(ctx context.Context) error
	Save(ctx context.Context, ref, dir string) error
}

const (
	helpSignedOut = "Available commands: register, login, exit"
	helpSignedIn  = "Available commands: whoami, (l)chats, open <n>, search <username>, add, " +
		"type <text>, write, emoji <name>, bs, img <path>, voice <path>, pending, clear, (s)end, " +
		"show, detail, block, media, save <n> [dir], logout, exit"
)

// errUsage marks a command typed with missing arguments.
var errUsage = errors.New("usage")

// runREPL starts a simple read–eval–print loop for the chatline CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Errors returned by handlers are printed as
// a notice and the loop goes on; nothing a command does ends the session.
// The loop exits on EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("chatline%s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				printlnFn("input error:", err)
			}
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		report(dispatch(ctx, a, cmd, args, line))
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, line string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpSignedOut)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	}

	if !a.isLoggedIn() {
		printlnFn("Please login or register first")
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.Whoami(ctx)
	case "l", "chats":
		return a.Chats(ctx)
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("%w: open <n>", errUsage)
		}
		return a.Open(ctx, args[0])
	case "search":
		if len(args) != 1 {
			return fmt.Errorf("%w: search <username>", errUsage)
		}
		return a.Search(ctx, args[0])
	case "add":
		return a.Add(ctx)
	case "type":
		// keep the user's spacing after the command word
		text := strings.TrimPrefix(strings.TrimLeft(line, " \t"), cmd)
		text = strings.TrimPrefix(text, " ")
		if text == "" {
			return fmt.Errorf("%w: type <text>", errUsage)
		}
		return a.Type(text)
	case "write":
		return a.Write(ctx)
	case "emoji":
		if len(args) != 1 {
			return fmt.Errorf("%w: emoji <name>", errUsage)
		}
		return a.Emoji(args[0])
	case "bs":
		return a.Backspace()
	case "img":
		if len(args) != 1 {
			return fmt.Errorf("%w: img <path>", errUsage)
		}
		return a.Image(args[0])
	case "voice":
		if len(args) != 1 {
			return fmt.Errorf("%w: voice <path>", errUsage)
		}
		return a.Voice(ctx, args[0])
	case "pending":
		return a.Pending()
	case "clear":
		return a.Clear()
	case "s", "send":
		return a.Send(ctx)
	case "show":
		return a.Show(ctx)
	case "detail":
		return a.Detail(ctx)
	case "block":
		return a.Block(ctx)
	case "media":
		return a.Media(ctx)
	case "save":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("%w: save <n> [dir]", errUsage)
		}
		dir := "."
		if len(args) == 2 {
			dir = args[1]
		}
		return a.Save(ctx, args[0], dir)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}

func report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		printlnFn(strings.Replace(err.Error(), "usage: ", "Usage: ", 1))
		return
	}
	printlnFn("Error:", err)
}
