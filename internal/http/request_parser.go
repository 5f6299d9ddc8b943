// Package http serves the Kvitt pages and htmx partials.
//
// This file implements utilities for turning requests into typed input.
// Form values are sanitized here so handlers only see trimmed text.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kvitt/internal/core"
	"kvitt/internal/form"
)

// maxIDLength bounds the event id accepted from the browser.
const maxIDLength = 128

var (
	errMissingID   = errors.New("missing event id")
	errInvalidID   = errors.New("invalid event id")
	errInvalidType = errors.New("type must be income or expense")
)

// TransactionForm is the modal form as submitted.
type TransactionForm struct {
	Title  string
	Amount string
	Date   string
}

// Input converts the form into controller input.
func (f TransactionForm) Input() form.Input {
	return form.Input{Title: f.Title, Amount: f.Amount, Date: f.Date}
}

// ParseTransactionForm reads the modal fields from a POST body.
func ParseTransactionForm(r *http.Request) (TransactionForm, error) {
	if err := r.ParseForm(); err != nil {
		return TransactionForm{}, err
	}
	return TransactionForm{
		Title:  sanitizeInput(r.PostForm.Get("title")),
		Amount: sanitizeInput(r.PostForm.Get("amount")),
		Date:   sanitizeInput(r.PostForm.Get("date")),
	}, nil
}

// Credentials are the login and register fields. Passwords are passed on
// untouched.
type Credentials struct {
	Username string
	Password string
	Confirm  string
}

// Complete reports whether both username and password were given.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// ParseCredentials reads the login or register form.
func ParseCredentials(r *http.Request) (Credentials, error) {
	if err := r.ParseForm(); err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Username: sanitizeInput(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
		Confirm:  r.PostForm.Get("confirm"),
	}, nil
}

// ParseEventID reads the event id from the query string, falling back to a
// form or JSON body for POST and DELETE requests.
func ParseEventID(r *http.Request) (core.EventID, error) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" && r.Body != nil && r.Body != http.NoBody {
		p := NewRequestBodyParser(r)
		if err := p.Parse(); err == nil {
			id = p.Get("id")
		}
	}
	if id == "" {
		return "", errMissingID
	}
	if len(id) > maxIDLength || strings.ContainsAny(id, "<>\"' ") {
		return "", errInvalidID
	}
	return core.EventID(id), nil
}

// ParseTransactionType reads ?type=income|expense and reports whether it is
// an expense.
func ParseTransactionType(query url.Values) (expense bool, err error) {
	switch strings.ToLower(strings.TrimSpace(query.Get("type"))) {
	case "income":
		return false, nil
	case "expense":
		return true, nil
	}
	return false, errInvalidType
}

// RequestBodyParser handles different content types for request body parsing.
// htmx sends form encoding; scripted clients may send JSON.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and keeps it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, 1<<16))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
