package crypto

// ZeroBytes overwrites a byte slice with zeros to remove sensitive material
// from memory once it is no longer needed.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// WipeKeyPair zeros the private half of a keypair in place.
func WipeKeyPair(kp *KeyPair) {
	if kp == nil {
		return
	}
	ZeroBytes(kp.Private[:])
}
