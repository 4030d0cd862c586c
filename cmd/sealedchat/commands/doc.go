// Package commands implements the sealedchat CLI: key initialization and
// restore checks against the local store and file directory, plus an
// in-process two-party demo of the synchronization engine.
package commands
