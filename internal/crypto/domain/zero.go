package domain

// Zero overwrites each buffer with zeros. Plaintexts and data keys are zeroed as soon
// as the operation using them returns.
func Zero(buffers ...[]byte) {
	for _, b := range buffers {
		clear(b)
	}
}
