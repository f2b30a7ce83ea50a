package webhook

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload is a JSON object with string values that keeps keys in insertion
// order. Setting an existing key replaces its value in place.
type Payload struct {
	keys   []string
	values map[string]string
}

func NewPayload() *Payload {
	return &Payload{values: make(map[string]string)}
}

// Set inserts key or overwrites its value (last write wins).
func (p *Payload) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Payload) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *Payload) Keys() []string {
	return append([]string(nil), p.keys...)
}

func (p *Payload) Len() int {
	return len(p.keys)
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, k := range p.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteString(p.values[k])
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}
