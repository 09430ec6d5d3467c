package inventory

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SchemaVersion is the record version written by this build.
const SchemaVersion = 1

const (
	kindNode    = "node"
	kindService = "service"
)

// ErrUnsupportedSchema is returned for records of an unknown version or kind.
var ErrUnsupportedSchema = errors.New("unsupported inventory schema")

type envelope struct {
	Version int             `cbor:"v"`
	Kind    string          `cbor:"kind"`
	Data    cbor.RawMessage `cbor:"data"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

func encode(kind string, v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return encMode.Marshal(envelope{Version: SchemaVersion, Kind: kind, Data: data})
}

func decode(raw []byte, kind string, v any) error {
	var env envelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode %s envelope: %w", kind, err)
	}
	if env.Version != SchemaVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedSchema, env.Version)
	}
	if env.Kind != kind {
		return fmt.Errorf("%w: expected %s record, got %q", ErrUnsupportedSchema, kind, env.Kind)
	}
	if err := decMode.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

func encodeNode(n *Node) ([]byte, error) {
	return encode(kindNode, n)
}

func decodeNode(raw []byte) (*Node, error) {
	var n Node
	if err := decode(raw, kindNode, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeService(s *Service) ([]byte, error) {
	return encode(kindService, s)
}

func decodeService(raw []byte) (*Service, error) {
	var s Service
	if err := decode(raw, kindService, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
