package driver

import (
	"crypto/sha256"

	"gotolower/internal/gotoc"
)

// Digest identifies a unit's cached output.
type Digest [32]byte

// combineDigest: H(content || part1 || part2 ...). Порядок частей фиксирован.
func combineDigest(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func stringDigest(s string) Digest {
	return sha256.Sum256([]byte(s))
}

// unitKey covers everything that changes the lowered table of a unit:
// its bytes, the default target and the producer writing the archive.
func unitKey(content [32]byte, target, producer string) Digest {
	return combineDigest(Digest(content),
		stringDigest(target),
		stringDigest(producer),
		stringDigest(gotoc.ArchiveFormat),
	)
}
