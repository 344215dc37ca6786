package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// paramError marks a request failure caused by the caller's parameters so the
// server can answer with the invalid-params code instead of a server error.
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

func decodeParams(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return invalidParams("expected a single params object, got %d", len(params))
	}
	decoder := json.NewDecoder(strings.NewReader(string(params[0])))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return invalidParams("malformed params: %v", err)
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	var out [20]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, invalidParams("%s: not hex: %v", field, err)
	}
	if len(decoded) != 20 {
		return out, invalidParams("%s: want 20 bytes, got %d", field, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseHash(field, raw string) ([32]byte, error) {
	var out [32]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, invalidParams("%s: not hex: %v", field, err)
	}
	if len(decoded) != 32 {
		return out, invalidParams("%s: want 32 bytes, got %d", field, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams("%s: amount required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("%s: not a decimal amount: %q", field, raw)
	}
	if amount.Sign() < 0 {
		return nil, invalidParams("%s: amount must not be negative", field)
	}
	return amount, nil
}

func hexAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func hexHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// float64Amount lossily converts a token amount for metric counters. Counter
// precision is acceptable for observability, the authoritative amounts stay
// in state.
func float64Amount(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
