// Package analyzer talks to the external document-analysis capability that
// reads receipt images and scores them.
package analyzer

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the provider answers without any text.
	ErrEmptyResponse = errors.New("analysis provider returned no content")
	// ErrMalformedResponse is returned when the provider text holds no usable JSON object.
	ErrMalformedResponse = errors.New("analysis provider returned malformed content")
)

// Analyzer is implemented by each provider adapter. Implementations receive a
// PNG already normalised by PrepareImage and perform exactly one remote call.
type Analyzer interface {
	Analyze(ctx context.Context, png []byte) (*Result, error)
	Name() string
	Close() error
}

// Result mirrors the provider response contract before domain normalisation.
type Result struct {
	ExtractedFields Fields     `json:"extractedFields"`
	RawText         string     `json:"rawText"`
	Validation      Validation `json:"validation"`
	SecurityFlags   []Flag     `json:"securityFlags"`
	Recommendation  string     `json:"recommendation"`
	Reliability     Score      `json:"reliability"`
}

// Fields holds the values read off the receipt.
type Fields struct {
	SenderName      string   `json:"senderName"`
	ReceiverName    string   `json:"receiverName"`
	IBAN            string   `json:"iban"`
	BankName        string   `json:"bankName"`
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	TransactionDate string   `json:"transactionDate"`
	Description     string   `json:"description"`
}

// Validation carries the provider's structural checks.
type Validation struct {
	IsBankReceipt bool     `json:"isBankReceipt"`
	IsLegible     bool     `json:"isLegible"`
	HasStamp      bool     `json:"hasStamp"`
	Issues        []string `json:"issues"`
}

// Flag is a single suspicious finding.
type Flag struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}
