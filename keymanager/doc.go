// Package keymanager implements the encryption-key lifecycle for sealedchat.
//
// The manager derives the user's deterministic keypair from whichever
// authentication secret the session offers (wallet signature, passkey PRF
// output, or PIN), caches it in the device-local store, publishes the public
// half to the remote key directory, and decides on every session open
// whether the user needs to restore or upgrade their key.
//
// The local cache is a single-writer resource: only this package mutates it.
// Every other component treats the active keypair as read-only context.
package keymanager
