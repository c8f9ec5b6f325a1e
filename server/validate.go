package server

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/findy-network/findy-triangle/agent/exchange"
	"github.com/samber/lo"
)

const maxHolderName = 100

// ValidationError has the error message per invalid input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := lo.Keys(e.Fields)
	sort.Strings(keys)
	msgs := lo.Map(keys, func(k string, _ int) string {
		return k + ": " + e.Fields[k]
	})
	return fmt.Sprintf("%s: %s", exchange.ErrValidation, strings.Join(msgs, ", "))
}

func (e *ValidationError) Unwrap() error {
	return exchange.ErrValidation
}

type fields map[string]string

func (f fields) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

type RegisterInput struct {
	SchemaName string `json:"schemaName"`
}

func (in RegisterInput) Validate() error {
	f := fields{}
	if in.SchemaName == "" {
		f["schemaName"] = "String must contain at least 1 character(s)"
	}
	return f.err()
}

type IssueInput struct {
	CredentialDefinitionID string  `json:"credentialDefinitionId"`
	HolderName             *string `json:"holderName,omitempty"`
}

func (in IssueInput) Validate() error {
	f := fields{}
	if in.CredentialDefinitionID == "" {
		f["credentialDefinitionId"] = "String must contain at least 1 character(s)"
	}
	if in.HolderName != nil {
		switch l := utf8.RuneCountInString(*in.HolderName); {
		case l < 1:
			f["holderName"] = "String must contain at least 1 character(s)"
		case l > maxHolderName:
			f["holderName"] = fmt.Sprintf("String must contain at most %d character(s)",
				maxHolderName)
		}
	}
	return f.err()
}

func (in IssueInput) holderName() string {
	if in.HolderName == nil {
		return ""
	}
	return *in.HolderName
}

type VerifyInput struct {
	CredentialDefinitionID string `json:"credentialDefinitionId"`
}

func (in VerifyInput) Validate() error {
	f := fields{}
	if in.CredentialDefinitionID == "" {
		f["credentialDefinitionId"] = "String must contain at least 1 character(s)"
	}
	return f.err()
}
