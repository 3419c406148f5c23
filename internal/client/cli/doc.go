// Package cli provides the interactive chatline terminal client.
//
// It wires configuration, the document and blob backends and the client
// components into a line-oriented REPL. Typical flow: register or log in,
// list conversations, open one, compose (text, emoji, image, voice note)
// and send. Messages of the open conversation are printed as they arrive.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
