package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App implements
// it; tests substitute a recorder.
type execIface interface {
	isLoggedIn() bool

	ShowMode(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Guest(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Nickname(ctx context.Context, args []string) error

	Books(ctx context.Context, args []string) error
	Use(ctx context.Context, args []string) error
	NewBook(ctx context.Context, args []string) error
	Join(ctx context.Context, args []string) error
	Leave(ctx context.Context, args []string) error
	DeleteBook(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Members(ctx context.Context, args []string) error
	Kick(ctx context.Context, args []string) error
	SyncNames(ctx context.Context, args []string) error

	Categories(ctx context.Context, args []string) error
	AddCategory(ctx context.Context, args []string) error
	DeleteCategory(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Summary(ctx context.Context, args []string) error
}

const (
	helpSignedOut = "Available commands: login, guest, mode, exit"
	helpSignedIn  = "Available commands:\n" +
		"  books, use <n|personal>, newbook <name> [-personal], join <code>, leave, rmbook, rename <name>\n" +
		"  members, kick <user id>, syncnames, nickname <name>\n" +
		"  cats, addcat <income|expense> <name>, rmcat <id>\n" +
		"  list [YYYY-MM], add, rm <id>, summary [YYYY-MM]\n" +
		"  mode, logout, exit"
)

// runREPL reads one command per line from in and dispatches it to a until
// input ends or the user types "exit" or "quit". Handlers report their own
// errors, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("bb %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "mode":
			_ = a.ShowMode(ctx, args)
		case "login":
			_ = a.Login(ctx, args)
		case "guest":
			_ = a.Guest(ctx, args)
		case "logout":
			_ = a.Logout(ctx, args)
		case "nickname":
			_ = a.Nickname(ctx, args)

		case "books":
			_ = a.Books(ctx, args)
		case "use":
			_ = a.Use(ctx, args)
		case "newbook":
			_ = a.NewBook(ctx, args)
		case "join":
			_ = a.Join(ctx, args)
		case "leave":
			_ = a.Leave(ctx, args)
		case "rmbook":
			_ = a.DeleteBook(ctx, args)
		case "rename":
			_ = a.Rename(ctx, args)
		case "members":
			_ = a.Members(ctx, args)
		case "kick":
			_ = a.Kick(ctx, args)
		case "syncnames":
			_ = a.SyncNames(ctx, args)

		case "cats":
			_ = a.Categories(ctx, args)
		case "addcat":
			_ = a.AddCategory(ctx, args)
		case "rmcat":
			_ = a.DeleteCategory(ctx, args)
		case "l", "list":
			_ = a.List(ctx, args)
		case "add":
			_ = a.Add(ctx, args)
		case "rm":
			_ = a.Remove(ctx, args)
		case "summary":
			_ = a.Summary(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
