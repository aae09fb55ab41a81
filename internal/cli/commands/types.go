package commands

import (
	"SHLink/internal/cli/api"
	"SHLink/internal/config"
	"flag"
	"io"
	"time"
)

// Ответы API управления, в объёме, нужном CLI.

type payload struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Exp   int64  `json:"exp,omitempty"`
	Flag  string `json:"flag,omitempty"`
	Label string `json:"label,omitempty"`
	V     int    `json:"v"`
}

type contentSummary struct {
	ID               string    `json:"id"`
	ContentType      string    `json:"contentType"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
	ContentLength    int64     `json:"contentLength"`
	CreatedAt        time.Time `json:"createdAt"`
}

type createResponse struct {
	ID            string           `json:"id"`
	ShlinkURL     string           `json:"shlinkUrl"`
	ManagementURL string           `json:"managementUrl"`
	Payload       payload          `json:"payload"`
	Label         string           `json:"label,omitempty"`
	Flags         string           `json:"flags"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	SingleUse     bool             `json:"singleUse"`
	Contents      []contentSummary `json:"contents"`
}

type linkSummary struct {
	ID           string     `json:"id"`
	Label        string     `json:"label,omitempty"`
	Flags        string     `json:"flags"`
	Active       bool       `json:"active"`
	SingleUse    bool       `json:"singleUse"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ContentCount int64      `json:"contentCount"`
	AccessCount  int64      `json:"accessCount"`
}

type linkPage struct {
	Items []linkSummary `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

type linkDetail struct {
	ID                        string           `json:"id"`
	Label                     string           `json:"label,omitempty"`
	Flags                     string           `json:"flags"`
	Active                    bool             `json:"active"`
	SingleUse                 bool             `json:"singleUse"`
	PasscodeAttemptsRemaining *int             `json:"passcodeAttemptsRemaining,omitempty"`
	ExpiresAt                 *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt                 time.Time        `json:"createdAt"`
	Contents                  []contentSummary `json:"contents"`
	TotalAccesses             int64            `json:"totalAccesses"`
}

type accessLogEntry struct {
	Action        string    `json:"action"`
	Recipient     string    `json:"recipient,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type accessLogPage struct {
	Items []accessLogEntry `json:"items"`
}

type manifestFile struct {
	ContentType string `json:"contentType"`
	Embedded    string `json:"embedded,omitempty"`
	Location    string `json:"location,omitempty"`
}

type manifestResponse struct {
	Status string         `json:"status"`
	Files  []manifestFile `json:"files"`
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.ServerURL)
}

// newFlagSet — флаги подкоманды без вывода в stderr.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
