package jsonpointer

import (
	"encoding/json"
	"errors"
	"strings"
)

// Pointer is a JSON pointer (RFC 6901), used to locate invalid members of
// configuration documents.
type Pointer []string

var ErrInvalidFormat = errors.New("invalid format")

var (
	tokenEncoder = strings.NewReplacer("~", "~0", "/", "~1")
	tokenDecoder = strings.NewReplacer("~1", "/", "~0", "~")
)

func New(tokens ...string) Pointer {
	p := make(Pointer, len(tokens))
	copy(p, tokens)
	return p
}

func (p *Pointer) Parse(s string) error {
	if s == "" {
		*p = Pointer{}
		return nil
	}

	if !strings.HasPrefix(s, "/") {
		return ErrInvalidFormat
	}

	parts := strings.Split(s[1:], "/")
	for i, part := range parts {
		parts[i] = tokenDecoder.Replace(part)
	}

	*p = Pointer(parts)

	return nil
}

func (p Pointer) String() string {
	var sb strings.Builder

	for _, token := range p {
		sb.WriteByte('/')
		sb.WriteString(tokenEncoder.Replace(token))
	}

	return sb.String()
}

func (p Pointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Pointer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return p.Parse(s)
}

func (p *Pointer) Append(token string) {
	*p = append(*p, token)
}
