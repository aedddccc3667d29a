package types

import (
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"sync"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type payloadRegistry struct {
	mtx   sync.RWMutex
	kinds map[PayloadKind]func() Payload
}

var registry = &payloadRegistry{kinds: make(map[PayloadKind]func() Payload)}

// RegisterPayload 注册payload的构造函数，解码时根据kind选择具体类型
// 构造函数需要返回指针类型
func RegisterPayload(kind PayloadKind, newFn func() Payload) {
	registry.mtx.Lock()
	defer registry.mtx.Unlock()
	if _, exist := registry.kinds[kind]; exist {
		panic(fmt.Sprintf("payload kind %v already registered", kind))
	}
	registry.kinds[kind] = newFn
}

func IsRegisteredPayload(kind PayloadKind) bool {
	registry.mtx.RLock()
	defer registry.mtx.RUnlock()
	_, exist := registry.kinds[kind]
	return exist
}

type payloadEnvelope struct {
	Kind PayloadKind         `json:"kind"`
	Body jsoniter.RawMessage `json:"body"`
}

// EncodePayload encodes a payload together with its kind.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPayload
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Body: body})
}

// DecodePayload decodes bytes produced by EncodePayload.
func DecodePayload(bz []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(bz, &env); err != nil {
		return nil, err
	}

	registry.mtx.RLock()
	newFn, exist := registry.kinds[env.Kind]
	registry.mtx.RUnlock()
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, env.Kind)
	}

	p := newFn()
	if err := json.Unmarshal(env.Body, p); err != nil {
		return nil, err
	}
	if p.Kind() != env.Kind {
		return nil, fmt.Errorf("%w: envelope %v, decoded %v", ErrUnknownKind, env.Kind, p.Kind())
	}
	return p, nil
}
