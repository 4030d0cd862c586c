// Package payload implements the symmetric blob codec shared by all
// non-text payload kinds (images, voice, location, structured art).
//
// Payload encoders produce an opaque plaintext blob; this package seals it
// under the per-conversation key both parties derive via ECDH, and opens it
// on the other side. The engine itself never interprets the blob.
package payload
