// Package orderai turns free-text customer orders into (product, quantity)
// pairs using a hosted text-completion model. Its output is untrusted: the
// inventory coordinator re-checks every pair against the live catalog.
package orderai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type OrderLine struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type Interpreter interface {
	Interpret(ctx context.Context, text string, productNames []string) ([]OrderLine, error)
}

var (
	ErrUnavailable   = errors.New("interpreter unavailable")
	ErrBadStatus     = errors.New("interpreter bad status")
	ErrBadResponse   = errors.New("interpreter bad response")
	ErrRateLimited   = errors.New("interpreter rate limited")
	ErrNotConfigured = errors.New("interpreter not configured")
)

// UnmarshalJSON accepts quantities written as numbers or numeric strings,
// which models produce interchangeably. Fractional values decode as 0 so the
// caller rejects the line.
func (l *OrderLine) UnmarshalJSON(b []byte) error {
	var raw struct {
		ProductName string          `json:"productName"`
		Quantity    json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	l.ProductName = strings.TrimSpace(raw.ProductName)
	l.Quantity = 0

	q := strings.Trim(strings.TrimSpace(string(raw.Quantity)), `"`)
	if q == "" || q == "null" {
		return nil
	}
	if n, err := strconv.Atoi(q); err == nil {
		l.Quantity = n
		return nil
	}
	if f, err := strconv.ParseFloat(q, 64); err == nil && f == float64(int(f)) {
		l.Quantity = int(f)
	}
	return nil
}

// ParseLines extracts the JSON array from a model reply. Replies are often
// wrapped in markdown code fences or preceded by prose.
func ParseLines(reply string) ([]OrderLine, error) {
	s := strings.ReplaceAll(reply, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no json array in reply", ErrBadResponse)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s[start : end+1])))
	var lines []OrderLine
	if err := dec.Decode(&lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return lines, nil
}

func buildPrompt(text string, productNames []string) string {
	var b strings.Builder
	b.WriteString("You are a point-of-sale assistant. Read the order text below and extract the products and their quantities. ")
	b.WriteString("Rules: 1. Only return products that appear in this list: [")
	b.WriteString(strings.Join(productNames, ", "))
	b.WriteString("]. 2. Ignore any product that is not in the list. ")
	b.WriteString("3. Ignore greetings, goodbyes and any other conversation that is not part of the order. ")
	b.WriteString(`4. Reply ONLY with a JSON array where each element has "productName" and "quantity". `)
	b.WriteString("Do not add any text before or after the JSON. ")
	b.WriteString(`Order text: "`)
	b.WriteString(text)
	b.WriteString(`"`)
	return b.String()
}
