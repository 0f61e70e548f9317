package fastlz

import "bytes"

const (
	hashLog  = 13
	hashSize = 1 << hashLog

	minMatch = 3
	maxCopy  = 32

	// farthest back a level 2 match can reach using the 16 bit distance form
	maxFarDistance = maxL2Distance + 1<<16
)

// Compress encodes data as a single FastLZ level 2 block. The result may be larger than data when it does not
// compress; Pack stores such payloads instead.
func Compress(data []byte) []byte {
	if len(data) == 0 {
		return []byte{}
	}

	out := make([]byte, 0, len(data)+len(data)/maxCopy+1)
	var table [hashSize]int32
	for i := range table {
		table[i] = -1
	}

	anchor := 0
	for ip := 0; ip+minMatch <= len(data); {
		h := hash3(data[ip:])
		ref := int(table[h])
		table[h] = int32(ip)

		distance := ip - ref
		if ref < 0 || distance > maxFarDistance || !bytes.Equal(data[ref:ref+minMatch], data[ip:ip+minMatch]) {
			ip++
			continue
		}

		length := minMatch
		for ip+length < len(data) && data[ref+length] == data[ip+length] {
			length++
		}
		// the far form costs two more bytes than it saves below five
		if distance > maxL2Distance && length < 5 {
			ip++
			continue
		}

		out = appendLiterals(out, data[anchor:ip])
		out = appendMatch(out, length, distance)
		ip += length
		anchor = ip
		if ip+minMatch <= len(data) {
			table[hash3(data[ip-1:])] = int32(ip - 1)
		}
	}
	out = appendLiterals(out, data[anchor:])

	// the first instruction is always a literal run; its high bits carry the level
	out[0] |= 1 << 5
	return out
}

func hash3(b []byte) uint32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	return (v * 2654435761) >> (32 - hashLog)
}

func appendLiterals(out, literals []byte) []byte {
	for len(literals) > 0 {
		n := len(literals)
		if n > maxCopy {
			n = maxCopy
		}
		out = append(out, byte(n-1))
		out = append(out, literals[:n]...)
		literals = literals[n:]
	}
	return out
}

func appendMatch(out []byte, length, distance int) []byte {
	ofs := distance - 1
	far := ofs >= maxL2Distance
	code := ofs
	if far {
		code = maxL2Distance
	}

	if length < 9 {
		out = append(out, byte((length-2)<<5|code>>8))
	} else {
		out = append(out, byte(7<<5|code>>8))
		rest := length - 9
		for ; rest >= 255; rest -= 255 {
			out = append(out, 255)
		}
		out = append(out, byte(rest))
	}
	out = append(out, byte(code))

	if far {
		ofs -= maxL2Distance
		out = append(out, byte(ofs>>8), byte(ofs))
	}
	return out
}
