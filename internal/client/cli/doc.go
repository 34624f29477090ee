// Package cli provides the interactive budgetbook terminal client.
//
// It reads commands line by line, dispatches them to the services layer and
// prints the results. The prompt shows the signed-in user, the active budget
// book and whether the shared store is reachable; a background watcher pings
// the store and a bus listener reports book switches made by any command.
//
// Key features:
//   - Sign in with an access token, or continue as a guest
//   - List, create, join, leave, rename and delete budget books
//   - Manage members and nicknames of shared books
//   - Record income and expenses, manage categories, print monthly summaries
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
