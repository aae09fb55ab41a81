package commands

import (
	"SHLink/internal/cli/api"
	"SHLink/internal/config"
	"SHLink/internal/crypto"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	errInvalidShlink     = errors.New("invalid shlink")
	errPasscodeRequired  = errors.New("link requires a passcode")
	errLinkNoLongerValid = errors.New("link is no longer valid")
)

// parseShlink извлекает payload из "shlink:/..." или "<viewer>#shlink:/...".
func parseShlink(s string) (*payload, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "shlink:/"); i >= 0 {
		s = s[i+len("shlink:/"):]
	} else {
		return nil, errInvalidShlink
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidShlink, err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidShlink, err)
	}
	if p.URL == "" || p.Key == "" {
		return nil, fmt.Errorf("%w: url and key are required", errInvalidShlink)
	}
	return &p, nil
}

type resolveCmd struct{}

func (resolveCmd) Name() string        { return "resolve" }
func (resolveCmd) Group() string      { return GroupRecipient }
func (resolveCmd) Description() string { return "Получить и расшифровать содержимое по shlink" }
func (resolveCmd) Usage() string {
	return "resolve <shlink> [--recipient R] [--passcode P] [--embed N] [--out DIR]"
}

func (resolveCmd) Run(ctx context.Context, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return ErrUsage
	}
	link := args[0]
	fs := newFlagSet("resolve")
	recipient := fs.String("recipient", "SHL CLI", "")
	passcode := fs.String("passcode", "", "")
	embed := fs.Int("embed", 0, "")
	outDir := fs.String("out", "", "")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	p, err := parseShlink(link)
	if err != nil {
		return err
	}
	key, err := crypto.DecodeKey(p.Key)
	if err != nil {
		return err
	}
	if strings.Contains(p.Flag, "P") && *passcode == "" {
		return errPasscodeRequired
	}

	client := api.NewClient("")
	var envelopes []string

	if strings.Contains(p.Flag, "U") {
		body, err := client.GetRaw(ctx, p.URL+"?recipient="+url.QueryEscape(*recipient))
		if err != nil {
			return err
		}
		envelopes = append(envelopes, string(body))
	} else {
		req := map[string]any{"recipient": *recipient}
		if *passcode != "" {
			req["passcode"] = *passcode
		}
		if *embed > 0 {
			req["embeddedLengthMax"] = *embed
		}
		var m manifestResponse
		if err := client.PostJSONURL(ctx, p.URL, req, &m); err != nil {
			return err
		}
		fmt.Fprintf(Out, "Status: %s, files: %d\n", m.Status, len(m.Files))
		if m.Status == "no-longer-valid" {
			return errLinkNoLongerValid
		}
		for _, f := range m.Files {
			if f.Embedded != "" {
				envelopes = append(envelopes, f.Embedded)
				continue
			}
			body, err := client.GetRaw(ctx, f.Location)
			if err != nil {
				return err
			}
			envelopes = append(envelopes, string(body))
		}
	}

	codec := crypto.NewCodec(false)
	for i, env := range envelopes {
		plain, err := codec.Decrypt(env, key)
		if err != nil {
			return fmt.Errorf("file %d: %w", i+1, err)
		}
		cty, _ := codec.ContentType(env)
		if *outDir == "" {
			fmt.Fprintf(Out, "--- file %d (%s) ---\n%s\n", i+1, cty, plain)
			continue
		}
		name := filepath.Join(*outDir, fmt.Sprintf("shl-file-%d.json", i+1))
		if err := os.WriteFile(name, plain, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(Out, "Сохранено: %s (%s)\n", name, cty)
	}
	return nil
}

func init() { RegisterCmd(resolveCmd{}) }
