package entity

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// md5Len and xxh128Len are the fixed digest lengths an Extent hash
// encodes, in bytes (spec §4.C: "hex strings of fixed byte length").
const (
	md5Len    = md5.Size // 16
	xxh128Len = 16
)

// hashJSON is the on-the-wire shape of an Extent's hash column: a JSON
// object with optional "md5"/"xxh128" hex-string entries, absent entries
// meaning "not computed" (spec §3).
type hashJSON struct {
	MD5    string `json:"md5,omitempty"`
	XXH128 string `json:"xxh128,omitempty"`
}

// ComputeMD5 returns the MD5 digest of data.
func ComputeMD5(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// ComputeXXH128 returns a 128-bit digest of data built from two distinct
// 64-bit xxhash sums (the corpus carries no native 128-bit xxHash
// implementation, only cespare/xxhash/v2's 64-bit Sum64; this proxy
// reuses it twice over distinguishable inputs to fill the 128-bit slot
// without inventing a hash of our own, see DESIGN.md).
func ComputeXXH128(data []byte) []byte {
	lo := xxhash.Sum64(data)
	hi := xxhash.Sum64(append(append([]byte{}, data...), 0xff))
	out := make([]byte, 0, xxh128Len)
	out = appendUint64(out, lo)
	out = appendUint64(out, hi)
	return out
}

func appendUint64(dst []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		dst = append(dst, byte(v>>(uint(i)*8)))
	}
	return dst
}

// EncodeHash marshals h into the JSON form stored in the extent hash
// column. Empty digests are omitted entirely, matching "not computed".
func EncodeHash(h Hash) ([]byte, error) {
	var j hashJSON
	if len(h.MD5) > 0 {
		if len(h.MD5) != md5Len {
			return nil, dsserr.Kindf(dsserr.InvalidData, "md5 digest must be %d bytes, got %d", md5Len, len(h.MD5))
		}
		j.MD5 = hex.EncodeToString(h.MD5)
	}
	if len(h.XXH128) > 0 {
		if len(h.XXH128) != xxh128Len {
			return nil, dsserr.Kindf(dsserr.InvalidData, "xxh128 digest must be %d bytes, got %d", xxh128Len, len(h.XXH128))
		}
		j.XXH128 = hex.EncodeToString(h.XXH128)
	}
	return json.Marshal(j)
}

// DecodeHash is the inverse of EncodeHash.
func DecodeHash(data []byte) (Hash, error) {
	if len(data) == 0 {
		return Hash{}, nil
	}
	var j hashJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Hash{}, dsserr.Wrap(dsserr.InvalidData, err, "decode extent hash")
	}
	var h Hash
	if j.MD5 != "" {
		b, err := hex.DecodeString(j.MD5)
		if err != nil {
			return Hash{}, dsserr.Wrap(dsserr.InvalidData, err, "decode md5 hex")
		}
		if len(b) != md5Len {
			return Hash{}, dsserr.Kindf(dsserr.InvalidData, "md5 digest must be %d bytes, got %d", md5Len, len(b))
		}
		h.MD5 = b
	}
	if j.XXH128 != "" {
		b, err := hex.DecodeString(j.XXH128)
		if err != nil {
			return Hash{}, dsserr.Wrap(dsserr.InvalidData, err, "decode xxh128 hex")
		}
		if len(b) != xxh128Len {
			return Hash{}, dsserr.Kindf(dsserr.InvalidData, "xxh128 digest must be %d bytes, got %d", xxh128Len, len(b))
		}
		h.XXH128 = b
	}
	return h, nil
}
