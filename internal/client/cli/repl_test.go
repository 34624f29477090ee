package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) ShowMode(_ context.Context, a []string) error { return f.record("mode", a) }
func (f *fakeExec) Login(_ context.Context, a []string) error {
	f.loggedIn = true
	return f.record("login", a)
}
func (f *fakeExec) Guest(_ context.Context, a []string) error { return f.record("guest", a) }
func (f *fakeExec) Logout(_ context.Context, a []string) error {
	f.loggedIn = false
	return f.record("logout", a)
}
func (f *fakeExec) Nickname(_ context.Context, a []string) error   { return f.record("nickname", a) }
func (f *fakeExec) Books(_ context.Context, a []string) error      { return f.record("books", a) }
func (f *fakeExec) Use(_ context.Context, a []string) error        { return f.record("use", a) }
func (f *fakeExec) NewBook(_ context.Context, a []string) error    { return f.record("newbook", a) }
func (f *fakeExec) Join(_ context.Context, a []string) error       { return f.record("join", a) }
func (f *fakeExec) Leave(_ context.Context, a []string) error      { return f.record("leave", a) }
func (f *fakeExec) DeleteBook(_ context.Context, a []string) error { return f.record("rmbook", a) }
func (f *fakeExec) Rename(_ context.Context, a []string) error     { return f.record("rename", a) }
func (f *fakeExec) Members(_ context.Context, a []string) error    { return f.record("members", a) }
func (f *fakeExec) Kick(_ context.Context, a []string) error       { return f.record("kick", a) }
func (f *fakeExec) SyncNames(_ context.Context, a []string) error  { return f.record("syncnames", a) }
func (f *fakeExec) Categories(_ context.Context, a []string) error { return f.record("cats", a) }
func (f *fakeExec) AddCategory(_ context.Context, a []string) error {
	return f.record("addcat", a)
}
func (f *fakeExec) DeleteCategory(_ context.Context, a []string) error {
	return f.record("rmcat", a)
}
func (f *fakeExec) List(_ context.Context, a []string) error    { return f.record("list", a) }
func (f *fakeExec) Add(_ context.Context, a []string) error     { return f.record("add", a) }
func (f *fakeExec) Remove(_ context.Context, a []string) error  { return f.record("rm", a) }
func (f *fakeExec) Summary(_ context.Context, a []string) error { return f.record("summary", a) }

func silenceREPL(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		var parts []string
		for _, v := range a {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_DispatchesEveryCommand(t *testing.T) {
	silenceREPL(t)

	input := strings.Join([]string{
		"login tok",
		"mode",
		"guest",
		"nickname Neo",
		"books",
		"use 2",
		"newbook Household",
		"join ABCD1234",
		"leave",
		"rmbook",
		"rename Home",
		"members",
		"kick u2",
		"syncnames",
		"cats",
		"addcat expense 식비",
		"rmcat c1",
		"l 2025-03",
		"add",
		"rm t1",
		"summary 2025-03",
		"logout",
		"exit",
		"books",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"login", "mode", "guest", "nickname", "books", "use", "newbook", "join", "leave", "rmbook",
		"rename", "members", "kick", "syncnames", "cats", "addcat", "rmcat", "list", "add", "rm",
		"summary", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"expense", "식비"}, exec.args[15])
	assert.Equal(t, []string{"2025-03"}, exec.args[17])
}

func TestRunREPL_HelpDependsOnSession(t *testing.T) {
	printed := silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" },
		bufio.NewReader(strings.NewReader("help\nlogin\nhelp\nfoobar\n")))

	assert.Contains(t, *printed, helpSignedOut)
	assert.Contains(t, *printed, helpSignedIn)
	assert.Contains(t, *printed, "Unknown command: foobar")
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("\n\ncats")))

	assert.Equal(t, []string{"cats"}, exec.calls)
}
