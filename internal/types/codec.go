package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/covenant-lang/covenant/internal/config"
)

// Binary value encoding. Every value is a one-byte tag followed by its
// payload. Integers are 16-byte big-endian, signed ones in two's
// complement. Sequence and tuple counts are unsigned 32-bit big-endian.
// Tuple fields are encoded sorted by name so equal tuples encode equally.
const (
	tagInt               = 0x00
	tagUint              = 0x01
	tagBuffer            = 0x02
	tagBoolTrue          = 0x03
	tagBoolFalse         = 0x04
	tagPrincipalStandard = 0x05
	tagPrincipalContract = 0x06
	tagResponseOk        = 0x07
	tagResponseErr       = 0x08
	tagOptionalNone      = 0x09
	tagOptionalSome      = 0x0a
	tagList              = 0x0b
	tagTuple             = 0x0c
	tagString            = 0x0d
)

var twoTo128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Serialize encodes v into its binary form.
func Serialize(v Value) ([]byte, error) {
	return appendValue(nil, v, 0)
}

// SerializeHex encodes v and renders the bytes as lowercase hex.
func SerializeHex(v Value) (string, error) {
	raw, err := Serialize(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func appendValue(buf []byte, v Value, depth int) ([]byte, error) {
	if depth > config.MaxValueDepth {
		return nil, fmt.Errorf("value nesting exceeds depth %d", config.MaxValueDepth)
	}
	switch val := v.(type) {
	case *IntValue:
		if !FitsInt(val.Val) {
			return nil, fmt.Errorf("int %s out of range", val.Val)
		}
		return appendInt128(append(buf, tagInt), val.Val), nil
	case *UintValue:
		if !FitsUint(val.Val) {
			return nil, fmt.Errorf("uint %s out of range", val.Val)
		}
		return appendInt128(append(buf, tagUint), val.Val), nil
	case *BoolValue:
		if val.Val {
			return append(buf, tagBoolTrue), nil
		}
		return append(buf, tagBoolFalse), nil
	case *BufferValue:
		buf = append(buf, tagBuffer)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val.Val)))
		return append(buf, val.Val...), nil
	case *StringValue:
		buf = append(buf, tagString)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val.Val)))
		return append(buf, val.Val...), nil
	case *PrincipalValue:
		if val.IsContract() {
			buf = append(buf, tagPrincipalContract)
			buf = appendShortString(buf, val.Address)
			return appendShortString(buf, val.ContractName), nil
		}
		return appendShortString(append(buf, tagPrincipalStandard), val.Address), nil
	case *OptionalValue:
		if val.IsNone() {
			return append(buf, tagOptionalNone), nil
		}
		return appendValue(append(buf, tagOptionalSome), val.Val, depth+1)
	case *ResponseValue:
		tag := byte(tagResponseErr)
		if val.Committed {
			tag = tagResponseOk
		}
		return appendValue(append(buf, tag), val.Val, depth+1)
	case *ListValue:
		buf = append(buf, tagList)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val.Items)))
		var err error
		for _, item := range val.Items {
			if buf, err = appendValue(buf, item, depth+1); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case *TupleValue:
		buf = append(buf, tagTuple)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val.Fields)))
		names := make([]string, 0, len(val.Fields))
		for name := range val.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		var err error
		for _, name := range names {
			buf = appendShortString(buf, name)
			if buf, err = appendValue(buf, val.Fields[name], depth+1); err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("cannot serialize %T", v)
	}
}

func appendInt128(buf []byte, v *big.Int) []byte {
	tw := v
	if v.Sign() < 0 {
		tw = new(big.Int).Add(v, twoTo128)
	}
	var out [16]byte
	tw.FillBytes(out[:])
	return append(buf, out[:]...)
}

func appendShortString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// Deserialize decodes one value and rejects trailing bytes.
func Deserialize(data []byte) (Value, error) {
	d := &decoder{data: data}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%d trailing bytes after value", len(d.data)-d.pos)
	}
	return v, nil
}

// DeserializeHex decodes a hex-rendered value.
func DeserializeHex(s string) (Value, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value: %v", err)
	}
	return Deserialize(raw)
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > config.MaxValueDepth {
		return nil, fmt.Errorf("value nesting exceeds depth %d", config.MaxValueDepth)
	}
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagInt:
		raw, err := d.take(16)
		if err != nil {
			return nil, err
		}
		v := new(big.Int).SetBytes(raw)
		if v.Bit(127) == 1 {
			v.Sub(v, twoTo128)
		}
		return &IntValue{Val: v}, nil
	case tagUint:
		raw, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return &UintValue{Val: new(big.Int).SetBytes(raw)}, nil
	case tagBoolTrue:
		return True, nil
	case tagBoolFalse:
		return False, nil
	case tagBuffer:
		raw, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return NewBuffer(raw), nil
	case tagString:
		raw, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return &StringValue{Val: string(raw)}, nil
	case tagPrincipalStandard:
		address, err := d.shortString()
		if err != nil {
			return nil, err
		}
		if !IsValidAddress(address) {
			return nil, fmt.Errorf("invalid principal address %q", address)
		}
		return &PrincipalValue{Address: address}, nil
	case tagPrincipalContract:
		address, err := d.shortString()
		if err != nil {
			return nil, err
		}
		name, err := d.shortString()
		if err != nil {
			return nil, err
		}
		id, err := NewContractIdentifier(address, name)
		if err != nil {
			return nil, err
		}
		return NewContractPrincipal(id), nil
	case tagOptionalNone:
		return None, nil
	case tagOptionalSome:
		inner, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		return Some(inner), nil
	case tagResponseOk, tagResponseErr:
		inner, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		return &ResponseValue{Committed: tag == tagResponseOk, Val: inner}, nil
	case tagList:
		count, err := d.count()
		if err != nil {
			return nil, err
		}
		items := make([]Value, 0, count)
		for i := 0; i < count; i++ {
			item, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return &ListValue{Items: items}, nil
	case tagTuple:
		count, err := d.count()
		if err != nil {
			return nil, err
		}
		fields := make(map[string]Value, count)
		for i := 0; i < count; i++ {
			name, err := d.shortString()
			if err != nil {
				return nil, err
			}
			if _, dup := fields[name]; dup {
				return nil, fmt.Errorf("duplicate tuple field %q", name)
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			fields[name] = v
		}
		return &TupleValue{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unknown value tag 0x%02x", tag)
	}
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("truncated value")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, fmt.Errorf("truncated value")
	}
	raw := d.data[d.pos : d.pos+n]
	d.pos += n
	return raw, nil
}

func (d *decoder) lengthPrefixed() ([]byte, error) {
	raw, err := d.take(4)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(raw)
	if uint64(n) > uint64(len(d.data)-d.pos) {
		return nil, fmt.Errorf("truncated value")
	}
	return d.take(int(n))
}

func (d *decoder) shortString() (string, error) {
	n, err := d.byte()
	if err != nil {
		return "", err
	}
	raw, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// count reads a u32 element count and sanity-checks it against the bytes
// that remain, so corrupt input cannot force a huge allocation.
func (d *decoder) count() (int, error) {
	raw, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(raw)
	if uint64(n) > uint64(len(d.data)-d.pos) {
		return 0, fmt.Errorf("element count %d exceeds remaining input", n)
	}
	return int(n), nil
}
