// Package statement defines the xAPI statements the client emits.
//
// A statement records one observed interaction: who did what to which
// activity. Statements are accepted by POST /api/xapi/statements in batches
// and identified solely by their ID.
package statement

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Statement is a single xAPI statement.
// Fields mirror the wire schema for /api/xapi/statements.
type Statement struct {
	ID        string       `json:"id" validate:"required,uuid4"`
	Actor     Actor        `json:"actor" validate:"required"`
	Verb      Verb         `json:"verb" validate:"required"`
	Object    Object       `json:"object" validate:"required"`
	Result    *Result      `json:"result,omitempty"`
	Context   *ContextInfo `json:"context,omitempty"`
	Timestamp time.Time    `json:"timestamp" validate:"required"`
}

// Actor identifies who performed the interaction. Exactly one of Mbox or
// Account must be set.
type Actor struct {
	ObjectType string   `json:"objectType,omitempty"`
	Name       string   `json:"name,omitempty"`
	Mbox       string   `json:"mbox,omitempty" validate:"omitempty,startswith=mailto:"`
	Account    *Account `json:"account,omitempty"`
}

// Account identifies an actor by a portal account instead of an email.
type Account struct {
	HomePage string `json:"homePage" validate:"required,url"`
	Name     string `json:"name" validate:"required"`
}

// Verb is the interaction kind, identified by IRI.
type Verb struct {
	ID      string            `json:"id" validate:"required,url"`
	Display map[string]string `json:"display,omitempty"`
}

// Object is the activity the interaction targeted.
type Object struct {
	ObjectType string      `json:"objectType,omitempty"`
	ID         string      `json:"id" validate:"required,url"`
	Definition *Definition `json:"definition,omitempty"`
}

// Definition describes an activity for display purposes.
type Definition struct {
	Type        string            `json:"type,omitempty"`
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
}

// Result captures the outcome of the interaction, when there is one.
type Result struct {
	Success    *bool  `json:"success,omitempty"`
	Completion *bool  `json:"completion,omitempty"`
	Response   string `json:"response,omitempty"`
	Score      *Score `json:"score,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// Score holds a numeric result.
type Score struct {
	Raw    float64 `json:"raw"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Scaled float64 `json:"scaled,omitempty"`
}

// ContextInfo carries session and platform context for a statement.
type ContextInfo struct {
	Registration string                 `json:"registration,omitempty"`
	Platform     string                 `json:"platform,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Extensions   map[string]interface{} `json:"extensions,omitempty"`
}

// Option configures a Statement under construction.
type Option func(*Statement)

// WithID overrides the generated statement ID.
func WithID(id string) Option {
	return func(s *Statement) {
		if id != "" {
			s.ID = id
		}
	}
}

// WithTimestamp overrides the generated timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(s *Statement) {
		if !ts.IsZero() {
			s.Timestamp = ts.UTC()
		}
	}
}

// WithResult attaches an outcome to the statement.
func WithResult(r Result) Option {
	return func(s *Statement) {
		s.Result = &r
	}
}

// WithContext attaches session context to the statement.
func WithContext(c ContextInfo) Option {
	return func(s *Statement) {
		s.Context = &c
	}
}

// New builds a statement with a fresh UUID and a UTC timestamp.
func New(actor Actor, verb Verb, object Object, opts ...Option) Statement {
	s := Statement{
		ID:        uuid.NewString(),
		Actor:     actor,
		Verb:      verb,
		Object:    object,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// AgentMbox builds an actor identified by email.
func AgentMbox(name, email string) Actor {
	return Actor{ObjectType: "Agent", Name: name, Mbox: "mailto:" + email}
}

// AgentAccount builds an actor identified by a portal account.
func AgentAccount(name, homePage, accountName string) Actor {
	return Actor{ObjectType: "Agent", Name: name, Account: &Account{HomePage: homePage, Name: accountName}}
}

// Activity builds an activity object with an optional display name.
func Activity(iri, name, activityType string) Object {
	o := Object{ObjectType: "Activity", ID: iri}
	if name != "" || activityType != "" {
		o.Definition = &Definition{Type: activityType}
		if name != "" {
			o.Definition.Name = map[string]string{"en-US": name}
		}
	}
	return o
}

var validate = validator.New()

// Validate reports whether the statement is well formed enough to send.
func (s Statement) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatement, err)
	}
	if (s.Actor.Mbox == "") == (s.Actor.Account == nil) {
		return fmt.Errorf("%w: actor requires exactly one of mbox or account", ErrInvalidStatement)
	}
	return nil
}
