// Package domain defines the envelope encryption data model: the persisted blob layout
// and the sizes every implementation must agree on to keep previously encrypted data readable.
package domain

const (
	// DataKeySize is the size in bytes of the per-operation AES-256 data key.
	DataKeySize = 32

	// WrappedKeySize is the size in bytes of a data key wrapped with AES-KEY-WRAP-PAD.
	//
	// RFC 5649 pads a 32-byte key to a multiple of 8 and prepends an 8-byte integrity
	// block, so a wrapped AES-256 key is always 40 bytes. Blobs are parsed by this
	// fixed offset, never by delimiter.
	WrappedKeySize = 40

	// IVSize is the size in bytes of the AES-GCM initialization vector.
	IVSize = 16

	// TagSize is the size in bytes of the AES-GCM authentication tag.
	TagSize = 16

	// MinBlobSize is the smallest well-formed blob: wrapped key, IV and a bare tag
	// (the encryption of an empty plaintext).
	MinBlobSize = WrappedKeySize + IVSize + TagSize
)
