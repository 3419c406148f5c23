// Package client assembles the chatline client from its configuration.
//
// # Overview
//
// The package provides:
//  1. Backend constructors (OpenStore, OpenBlobs, OpenCache) that pick the
//     document store, blob store and profile cache named by the config.
//  2. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     SQLite file holding the session token.
//  3. Client, which owns every component and binds them together:
//     session → profile → conversation list, selector → synchronizer.
//
// Concurrency & Contexts
//
// All components are safe for concurrent use. The context passed to New
// scopes the subscriptions the client opens; Close releases them.
package client
