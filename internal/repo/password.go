package repo

import "github.com/vmihailenco/msgpack/v5"

// Password wraps a server password so it never leaks into logs or rendered
// output through the normal formatting verbs. It still round-trips through
// the blob codec as a plain string via the msgpack custom (de)encoder below.
type Password string

// String implements fmt.Stringer, always redacting the underlying value.
func (Password) String() string {
	return "[Password]"
}

// GoString implements fmt.GoStringer so %#v also redacts.
func (Password) GoString() string {
	return "[Password]"
}

// Reveal returns the raw password value. Callers must opt in explicitly;
// there is no accidental path to the plaintext through Stringer/GoStringer.
func (p Password) Reveal() string {
	return string(p)
}

var (
	_ msgpack.CustomEncoder = Password("")
	_ msgpack.CustomDecoder = (*Password)(nil)
)

// EncodeMsgpack writes the raw password value, bypassing String/GoString.
func (p Password) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(p))
}

// DecodeMsgpack reads the raw password value back out of the blob.
func (p *Password) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	*p = Password(s)
	return nil
}
