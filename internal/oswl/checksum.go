package oswl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
)

// Canonicalize validates s and returns its canonical form together with the
// checksum of that form.
//
// The canonical encoding is JSON with object keys sorted and every number
// in the form produced by canonicalNumber, so 1, 1.0 and 1e0 are the same
// value. The returned snapshot is those bytes decoded back with numbers kept
// as json.Number, which is also what DecodeResourceData yields for a stored
// snapshot, so a fresh snapshot and a reloaded one compare structurally.
func Canonicalize(s Snapshot) (Snapshot, string, error) {
	if err := ValidateSnapshot(s); err != nil {
		return nil, "", err
	}

	data, err := encodeSnapshot(s)
	if err != nil {
		return nil, "", err
	}

	var out Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, "", &SerializationError{Err: err}
	}
	if out == nil {
		out = Snapshot{}
	}
	for _, r := range out {
		canonicalizeNumbers(r)
	}

	data, err = encodeSnapshot(out)
	if err != nil {
		return nil, "", err
	}

	return out, checksumHex(data), nil
}

// Checksum returns the hex SHA-256 digest of the canonical encoding of s.
func Checksum(s Snapshot) (string, error) {
	_, sum, err := Canonicalize(s)
	return sum, err
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return data, nil
}

func checksumHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// canonicalizeNumbers rewrites, in place, every json.Number nested in v to
// its canonical form and returns the result.
func canonicalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		return canonicalNumber(v)
	case Resource:
		for k, e := range v {
			v[k] = canonicalizeNumbers(e)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = canonicalizeNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = canonicalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// canonicalNumber renders n by value: integers (including integral floats
// such as 1.0 or 2e3 within float64's exact range) in plain decimal, any
// other number as the shortest float64 representation. Text that is not a
// number is returned unchanged.
func canonicalNumber(n json.Number) json.Number {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(i, 10))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxExactInt {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}
