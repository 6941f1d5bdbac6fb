package memory

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	stateEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	stateDecoder, _ = zstd.NewReader(nil)
)

type historyEntry struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// sessionState is the serialized form of a handle's history
type sessionState struct {
	Version int            `json:"v"`
	Entries []historyEntry `json:"entries"`
	Index   int            `json:"index"`
}

const stateVersion = 1

func encodeState(st sessionState) ([]byte, error) {
	st.Version = stateVersion
	raw, err := sonic.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return stateEncoder.EncodeAll(raw, nil), nil
}

func decodeState(data []byte) (sessionState, error) {
	var st sessionState
	raw, err := stateDecoder.DecodeAll(data, nil)
	if err != nil {
		return st, fmt.Errorf("decompress state: %w", err)
	}
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("unmarshal state: %w", err)
	}
	if st.Version != stateVersion {
		return st, fmt.Errorf("unsupported state version %d", st.Version)
	}
	if len(st.Entries) > 0 && (st.Index < 0 || st.Index >= len(st.Entries)) {
		return st, fmt.Errorf("state index %d out of range", st.Index)
	}
	return st, nil
}
