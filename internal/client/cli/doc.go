// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration, the HTTP API client and a session service into a
// REPL. A background watcher probes the server and shows whether it is
// online in the prompt.
//
// Commands:
//   - register, login, logout
//   - whoami, update, avatar [path]
//   - check, delete
//   - help, exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
