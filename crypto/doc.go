// Package crypto implements the cryptographic primitives for sealedchat.
//
// This package handles keypair generation, deterministic keypair derivation
// from the supported authentication secrets (wallet signatures, passkey PRF
// outputs, and PINs), ECDH shared-secret computation, and authenticated
// encryption using the NaCl constructions from Go's x/crypto packages.
//
// Example:
//
//	keys, err := crypto.DeriveFromSignature(signature)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", hex.EncodeToString(keys.Public[:]))
package crypto
