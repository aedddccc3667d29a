package state

import (
	jsoniter "github.com/json-iterator/go"
	"roundbft/types"
	"sort"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fieldJSON struct {
	Key string `json:"key"`
	Value
}

type synchronizedDataJSON struct {
	Period    types.Period          `json:"period"`
	LastRound types.RoundID         `json:"last_round"`
	TimedOut  bool                  `json:"timed_out"`
	Fields    []fieldJSON           `json:"fields"`
	Payloads  []jsoniter.RawMessage `json:"payloads"`
}

// MarshalJSON 字段按key排序输出，保证编码确定
func (sd *SynchronizedData) MarshalJSON() ([]byte, error) {
	out := synchronizedDataJSON{
		Period:    sd.period,
		LastRound: sd.lastRound,
		TimedOut:  sd.timedOut,
		Fields:    make([]fieldJSON, 0, len(sd.fields)),
		Payloads:  make([]jsoniter.RawMessage, 0, len(sd.payloads)),
	}
	for k, v := range sd.fields {
		out.Fields = append(out.Fields, fieldJSON{Key: k, Value: v})
	}
	sort.Slice(out.Fields, func(i, j int) bool { return out.Fields[i].Key < out.Fields[j].Key })

	for _, p := range sd.payloads {
		bz, err := types.EncodePayload(p)
		if err != nil {
			return nil, err
		}
		out.Payloads = append(out.Payloads, bz)
	}
	return json.Marshal(out)
}

func (sd *SynchronizedData) UnmarshalJSON(bz []byte) error {
	var in synchronizedDataJSON
	if err := json.Unmarshal(bz, &in); err != nil {
		return err
	}

	sd.period = in.Period
	sd.lastRound = in.LastRound
	sd.timedOut = in.TimedOut
	sd.fields = make(map[string]Value, len(in.Fields))
	for _, f := range in.Fields {
		sd.fields[f.Key] = f.Value
	}
	sd.payloads = make([]types.Payload, 0, len(in.Payloads))
	for _, raw := range in.Payloads {
		p, err := types.DecodePayload(raw)
		if err != nil {
			return err
		}
		sd.payloads = append(sd.payloads, p)
	}
	return nil
}
