package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Code identifies which check a payload failed.
type Code string

const (
	CodeMalformed      Code = "malformed_payload"
	CodeMissingPrice   Code = "missing_price"
	CodeNullPrice      Code = "null_price"
	CodeNonNumeric     Code = "non_numeric_price"
	CodeNonPositive    Code = "non_positive_price"
	CodeSymbolMismatch Code = "symbol_mismatch"
)

// Violation is a failed check with enough detail for a precise error
// message. Code is what policy decisions key on; Detail is for humans.
type Violation struct {
	Code   Code
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invalid quote payload: %s: %s", v.Code, v.Detail)
}

func violationf(code Code, format string, args ...any) *Violation {
	return &Violation{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Price extracts and checks the price for requestedSymbol from a raw
// quote payload. It accepts the two shapes quote sources actually send:
// a single object, or an array of per-asset objects identified by a
// "symbol" or "name" key. Price values may be JSON numbers or numeric
// strings; both are parsed as decimals so precision survives. Pure
// function of its inputs, no side effects.
//
// Failures are *Violation errors. The checks run in a fixed order, so a
// payload failing several of them reports the first: parseability,
// price presence, non-null, numeric, strictly positive, symbol match.
func Price(body []byte, requestedSymbol string) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return decimal.Decimal{}, violationf(CodeMalformed, "body is not valid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return decimal.Decimal{}, violationf(CodeMalformed, "trailing data after JSON value")
	}

	var entry map[string]any
	switch p := payload.(type) {
	case map[string]any:
		entry = p
	case []any:
		entry = findEntry(p, requestedSymbol)
		if entry == nil {
			return decimal.Decimal{}, violationf(CodeMissingPrice, "no entry for symbol %q in listing", requestedSymbol)
		}
	default:
		return decimal.Decimal{}, violationf(CodeMalformed, "unexpected payload shape %T", payload)
	}

	raw, ok := entry["price"]
	if !ok {
		return decimal.Decimal{}, violationf(CodeMissingPrice, "price field is missing")
	}
	if raw == nil {
		return decimal.Decimal{}, violationf(CodeNullPrice, "price field is null")
	}

	price, verr := parsePrice(raw)
	if verr != nil {
		return decimal.Decimal{}, verr
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, violationf(CodeNonPositive, "price %s is not strictly positive", price)
	}

	if got, ok := payloadSymbol(entry); ok && got != requestedSymbol {
		return decimal.Decimal{}, violationf(CodeSymbolMismatch, "payload is for %q, requested %q", got, requestedSymbol)
	}

	return price, nil
}

// findEntry picks the object for the requested symbol out of a listing.
// Non-object elements are skipped; some feeds mix metadata into the
// same array.
func findEntry(list []any, symbol string) map[string]any {
	for _, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if got, ok := payloadSymbol(m); ok && got == symbol {
			return m
		}
	}
	return nil
}

// payloadSymbol reads the asset identifier from an entry, under either
// key quote sources use.
func payloadSymbol(entry map[string]any) (string, bool) {
	for _, key := range []string{"symbol", "name"} {
		if v, ok := entry[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func parsePrice(raw any) (decimal.Decimal, *Violation) {
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, violationf(CodeNonNumeric, "price %q is not numeric", v.String())
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, violationf(CodeNonNumeric, "price %q is not numeric", v)
		}
		return d, nil
	default:
		return decimal.Decimal{}, violationf(CodeNonNumeric, "price has unexpected type %T", raw)
	}
}
