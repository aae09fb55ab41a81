package commands

import (
	"SHLink/internal/config"
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type listCmd struct{}

func (listCmd) Name() string        { return "list" }
func (listCmd) Description() string { return "Список ссылок" }
func (listCmd) Usage() string       { return "list [--active true|false] [--page N] [--size N]" }

func (listCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlagSet("list")
	active := fs.String("active", "", "")
	page := fs.Int("page", 0, "")
	size := fs.Int("size", 20, "")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	q := url.Values{}
	if *active != "" {
		if _, err := strconv.ParseBool(*active); err != nil {
			return ErrUsage
		}
		q.Set("active", *active)
	}
	q.Set("page", strconv.Itoa(*page))
	q.Set("size", strconv.Itoa(*size))

	var res linkPage
	if err := newClient(cfg).GetJSON(ctx, "/api/shl?"+q.Encode(), &res); err != nil {
		return err
	}
	if len(res.Items) == 0 {
		fmt.Fprintln(Out, "Нет ссылок")
		return nil
	}
	for _, l := range res.Items {
		state := "active"
		if !l.Active {
			state = "inactive"
		}
		fmt.Fprintf(Out, "- %s  %-8s flags=%-3s contents=%d accesses=%d expires=%s  %s\n",
			l.ID, state, l.Flags, l.ContentCount, l.AccessCount, formatTime(l.ExpiresAt), l.Label)
	}
	fmt.Fprintf(Out, "Всего: %d (страница %d, размер %d)\n", res.Total, res.Page, res.Size)
	return nil
}

type showCmd struct{}

func (showCmd) Name() string        { return "show" }
func (showCmd) Description() string { return "Подробности ссылки" }
func (showCmd) Usage() string       { return "show <id>" }

func (showCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	var d linkDetail
	if err := newClient(cfg).GetJSON(ctx, "/api/shl/"+url.PathEscape(args[0]), &d); err != nil {
		return err
	}

	fmt.Fprintf(Out, "ID:        %s\n", d.ID)
	if d.Label != "" {
		fmt.Fprintf(Out, "Label:     %s\n", d.Label)
	}
	fmt.Fprintf(Out, "Flags:     %s\n", d.Flags)
	fmt.Fprintf(Out, "Active:    %t\n", d.Active)
	fmt.Fprintf(Out, "SingleUse: %t\n", d.SingleUse)
	if d.PasscodeAttemptsRemaining != nil {
		fmt.Fprintf(Out, "Attempts:  %d\n", *d.PasscodeAttemptsRemaining)
	}
	fmt.Fprintf(Out, "Expires:   %s\n", formatTime(d.ExpiresAt))
	fmt.Fprintf(Out, "Accesses:  %d\n", d.TotalAccesses)
	for _, c := range d.Contents {
		name := c.OriginalFileName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(Out, "  * %s  %s  %d bytes  %s\n", c.ID, c.ContentType, c.ContentLength, name)
	}
	return nil
}

type deactivateCmd struct{}

func (deactivateCmd) Name() string        { return "deactivate" }
func (deactivateCmd) Description() string { return "Деактивировать ссылку" }
func (deactivateCmd) Usage() string       { return "deactivate <id>" }

func (deactivateCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	if err := newClient(cfg).Delete(ctx, "/api/shl/"+url.PathEscape(args[0])); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Ссылка деактивирована")
	return nil
}

type logsCmd struct{}

func (logsCmd) Name() string        { return "logs" }
func (logsCmd) Description() string { return "Журнал доступа ссылки" }
func (logsCmd) Usage() string       { return "logs <id> [--page N] [--size N]" }

func (logsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return ErrUsage
	}
	id := args[0]
	fs := newFlagSet("logs")
	page := fs.Int("page", 0, "")
	size := fs.Int("size", 50, "")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(*page))
	q.Set("size", strconv.Itoa(*size))

	var res accessLogPage
	if err := newClient(cfg).GetJSON(ctx, "/api/shl/"+url.PathEscape(id)+"/access-log?"+q.Encode(), &res); err != nil {
		return err
	}
	if len(res.Items) == 0 {
		fmt.Fprintln(Out, "Журнал пуст")
		return nil
	}
	for _, e := range res.Items {
		result := "ok"
		if !e.Success {
			result = "FAIL: " + e.FailureReason
		}
		fmt.Fprintf(Out, "%s  %-17s %-20s %-15s %s\n",
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Action, e.Recipient, e.IPAddress, result)
	}
	return nil
}

func init() {
	RegisterCmd(listCmd{})
	RegisterCmd(showCmd{})
	RegisterCmd(deactivateCmd{})
	RegisterCmd(logsCmd{})
}
