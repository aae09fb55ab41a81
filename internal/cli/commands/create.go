package commands

import (
	"SHLink/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type createOptions struct {
	PatientID           string   `json:"patientId,omitempty"`
	Categories          []string `json:"categories,omitempty"`
	Label               string   `json:"label,omitempty"`
	Passcode            string   `json:"passcode,omitempty"`
	ExpirationInSeconds *int64   `json:"expirationInSeconds,omitempty"`
	SingleUse           bool     `json:"singleUse"`
	LongTerm            bool     `json:"longTerm"`
	DirectAccess        bool     `json:"directAccess"`
}

type createJSONRequest struct {
	Content json.RawMessage `json:"content,omitempty"`
	createOptions
}

type createCmd struct{}

func (createCmd) Name() string        { return "create" }
func (createCmd) Description() string { return "Создать SMART Health Link" }
func (createCmd) Usage() string {
	return "create [--json FILE | --file FILE] [--patient ID --categories A,B] [--label L] [--passcode P] [--expires SEC] [--single-use] [--long-term] [--direct]"
}

func (createCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlagSet("create")
	jsonPath := fs.String("json", "", "")
	filePath := fs.String("file", "", "")
	categories := fs.String("categories", "", "")
	expires := fs.Int64("expires", 0, "")
	var opts createOptions
	fs.StringVar(&opts.PatientID, "patient", "", "")
	fs.StringVar(&opts.Label, "label", "", "")
	fs.StringVar(&opts.Passcode, "passcode", "", "")
	fs.BoolVar(&opts.SingleUse, "single-use", false, "")
	fs.BoolVar(&opts.LongTerm, "long-term", false, "")
	fs.BoolVar(&opts.DirectAccess, "direct", false, "")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	if *jsonPath != "" && *filePath != "" {
		return ErrUsage
	}
	if *jsonPath == "" && *filePath == "" && *categories == "" {
		return ErrUsage
	}
	if *categories != "" {
		opts.Categories = splitList(*categories)
	}
	if *expires > 0 {
		opts.ExpirationInSeconds = expires
	}

	client := newClient(cfg)
	var res createResponse

	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			return err
		}
		name := filepath.Base(*filePath)
		if err := client.PostMultipart(ctx, "/api/shl", name, detectContentType(name, data), data, opts, &res); err != nil {
			return err
		}
	} else {
		req := createJSONRequest{createOptions: opts}
		if *jsonPath != "" {
			data, err := os.ReadFile(*jsonPath)
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return errors.New("content file is not valid JSON")
			}
			req.Content = data
		}
		if err := client.PostJSON(ctx, "/api/shl", req, &res); err != nil {
			return err
		}
	}

	fmt.Fprintf(Out, "ID:         %s\n", res.ID)
	fmt.Fprintf(Out, "Flags:      %s\n", res.Flags)
	fmt.Fprintf(Out, "Expires:    %s\n", formatTime(res.ExpiresAt))
	fmt.Fprintf(Out, "Contents:   %d\n", len(res.Contents))
	fmt.Fprintf(Out, "Management: %s\n", res.ManagementURL)
	fmt.Fprintf(Out, "SHLink:     %s\n", res.ShlinkURL)
	fmt.Fprintln(Out, "Сохраните ссылку: ключ шифрования больше не будет показан.")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func init() { RegisterCmd(createCmd{}) }
