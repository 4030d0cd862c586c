// Package storage implements the device-local persistent store for
// sealedchat.
//
// The store holds the serialized keypair and its source tag, the local PIN
// verifier, and per-conversation message caches. It is keyed by device, not
// by account: the user or the browser can clear it at any time without the
// remote key directory noticing, which is why the restore evaluation in the
// keymanager package always re-derives its answer instead of trusting a
// cached flag.
package storage
