package dropbox

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// HashBlockSize is the block length of the Dropbox content hash.
const HashBlockSize = 4 * 1024 * 1024

// ContentHash computes the Dropbox content hash of data: the SHA-256 of the
// concatenated SHA-256 digests of each 4 MiB block.
func ContentHash(data []byte) string {
	h := NewContentHasher()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// contentHasher is a streaming hash.Hash for the Dropbox content hash.
type contentHasher struct {
	digests []byte // block digests so far
	block   hash.Hash
	filled  int
}

// NewContentHasher returns a hash.Hash producing Dropbox content hashes.
func NewContentHasher() hash.Hash {
	return &contentHasher{block: sha256.New()}
}

func (h *contentHasher) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if h.filled == HashBlockSize {
			h.digests = h.block.Sum(h.digests)
			h.block.Reset()
			h.filled = 0
		}
		take := min(HashBlockSize-h.filled, len(p))
		h.block.Write(p[:take])
		h.filled += take
		p = p[take:]
	}
	return n, nil
}

func (h *contentHasher) Sum(b []byte) []byte {
	overall := sha256.New()
	overall.Write(h.digests)
	if h.filled > 0 {
		overall.Write(h.block.Sum(nil))
	}
	return overall.Sum(b)
}

func (h *contentHasher) Reset() {
	h.digests = h.digests[:0]
	h.block.Reset()
	h.filled = 0
}

func (h *contentHasher) Size() int      { return sha256.Size }
func (h *contentHasher) BlockSize() int { return sha256.BlockSize }
