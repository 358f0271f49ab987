package command

import "encoding/json"

// errPayload mirrors writeErrorJson's {"ok":false,"err":{...}} shape.
type errPayload struct {
	OK  bool    `json:"ok"`
	Err errBody `json:"err"`
}

type errBody struct {
	Code      string `json:"code"`
	Where     string `json:"where"`
	Retryable bool   `json:"retryable"`
}

// fallbackJSON is returned when json.Marshal itself fails (never expected
// for this fixed shape, but writeErrorJson's own snprintf failure path
// has the same "don't panic, return something" spirit).
const fallbackJSON = `{"ok":false}`

// WriteError renders code/where as the command-protocol's standard error
// document, the Go analog of writeErrorJson.
func WriteError(code Code, where string) []byte {
	if where == "" {
		where = "unknown"
	}
	data, err := json.Marshal(errPayload{
		OK: false,
		Err: errBody{
			Code:      code.String(),
			Where:     where,
			Retryable: code.Retryable(),
		},
	})
	if err != nil {
		return []byte(fallbackJSON)
	}
	return data
}

// errPayloadWithSlot mirrors writeErrorJsonWithSlot's shape.
type errPayloadWithSlot struct {
	OK   bool    `json:"ok"`
	Slot uint8   `json:"slot"`
	Err  errBody `json:"err"`
}

// WriteErrorWithSlot is WriteError plus a slot index, the Go analog of
// writeErrorJsonWithSlot.
func WriteErrorWithSlot(code Code, where string, slot uint8) []byte {
	if where == "" {
		where = "unknown"
	}
	data, err := json.Marshal(errPayloadWithSlot{
		OK:   false,
		Slot: slot,
		Err: errBody{
			Code:      code.String(),
			Where:     where,
			Retryable: code.Retryable(),
		},
	})
	if err != nil {
		return []byte(fallbackJSON)
	}
	return data
}
