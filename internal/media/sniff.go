package media

import "bytes"

// signature is one known leading-byte pattern. Offset allows container
// formats whose marker does not start at byte zero (ISO-BMFF, RIFF).
type signature struct {
	offset      int
	magic       []byte
	contentType string
}

// Signatures for the attachment types the chat transport actually carries:
// images, voice notes, video clips, and documents. RIFF containers (WEBP,
// WAVE) are distinguished by the format tag at offset 8, not the shared
// "RIFF" prefix.
var signatures = []signature{
	{0, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{0, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{0, []byte("GIF87a"), "image/gif"},
	{0, []byte("GIF89a"), "image/gif"},
	{8, []byte("WEBP"), "image/webp"},
	{8, []byte("WAVE"), "audio/wav"},
	{0, []byte("OggS"), "audio/ogg"},
	{0, []byte("ID3"), "audio/mpeg"},
	{0, []byte{0xFF, 0xFB}, "audio/mpeg"},
	{0, []byte("#!AMR"), "audio/amr"},
	{4, []byte("ftyp"), "video/mp4"},
	{0, []byte{0x1A, 0x45, 0xDF, 0xA3}, "video/webm"},
	{0, []byte("%PDF"), "application/pdf"},
	{0, []byte("PK\x03\x04"), "application/zip"},
}

// SniffContentType inspects the leading bytes of data against the signature
// table. A match overrides declared, since upstream transports frequently
// mislabel or omit content types; otherwise declared is returned, or
// application/octet-stream when the caller declared nothing.
func SniffContentType(data []byte, declared string) string {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.contentType
		}
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
