package commands

import (
	"SHLink/internal/cli/api"
	"SHLink/internal/config"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Коды выхода CLI.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitPasscode    = 3 // passcode отсутствует или неверен
	ExitGone        = 4 // ссылка или токен больше недоступны
	ExitInterrupted = 130
)

// Dispatch выполняет команду args[0] и возвращает код выхода процесса.
// Глобальные флаги (--base-url, --https) к этому моменту уже разобраны config.
func Dispatch(ctx context.Context, cfg *config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(Out, FormatGlobalUsage())
		return ExitUsage
	}

	name := strings.ToLower(args[0])
	switch name {
	case "help", "-h", "--help": // shlcli help [command]
		if len(args) == 1 {
			fmt.Fprint(Out, FormatGlobalUsage())
			return ExitOK
		}
		if c, ok := Get(args[1]); ok {
			printCommandHelp(c)
			return ExitOK
		}
		fmt.Fprintf(Out, "Unknown command: %s\n\n", args[1])
		fmt.Fprint(Out, FormatGlobalUsage())
		return ExitUsage
	}

	c, ok := Get(name)
	if !ok {
		fmt.Fprintf(Out, "Unknown command: %s\n\n", name)
		fmt.Fprint(Out, FormatGlobalUsage())
		return ExitUsage
	}
	if wantsHelp(args[1:]) {
		printCommandHelp(c)
		return ExitOK
	}

	return report(name, c, c.Run(ctx, cfg, args[1:]))
}

// report печатает результат команды и выбирает код выхода.
func report(name string, c Command, err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrUsage) {
		fmt.Fprintf(Out, "Usage: %s\n", c.Usage())
		return ExitUsage
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(Out, "%s: interrupted\n", name)
		return ExitInterrupted
	}
	if errors.Is(err, errPasscodeRequired) {
		fmt.Fprintf(Out, "%s: link is protected by a passcode, pass --passcode\n", name)
		return ExitPasscode
	}
	if errors.Is(err, errLinkNoLongerValid) {
		fmt.Fprintf(Out, "%s: link is no longer valid (deactivated, used or out of passcode attempts)\n", name)
		return ExitGone
	}

	var se *api.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized:
			if se.RemainingAttempts != nil {
				fmt.Fprintf(Out, "%s: passcode rejected, %d attempt(s) left before the link is disabled\n", name, *se.RemainingAttempts)
			} else {
				fmt.Fprintf(Out, "%s: passcode rejected: %s\n", name, se.Message)
			}
			return ExitPasscode
		case http.StatusNotFound:
			fmt.Fprintf(Out, "%s: link or file not found (unknown, expired, deactivated or already used): %s\n", name, se.Message)
			return ExitGone
		case http.StatusGone:
			fmt.Fprintf(Out, "%s: download token expired, request the manifest again\n", name)
			return ExitGone
		case http.StatusRequestEntityTooLarge:
			fmt.Fprintf(Out, "%s: file is larger than the server accepts\n", name)
			return ExitError
		}
	}

	fmt.Fprintf(Out, "%s error: %v\n", name, err)
	return ExitError
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}
	return false
}

func printCommandHelp(c Command) {
	fmt.Fprintf(Out, "Usage: %s\n", c.Usage())
	if d := c.Description(); d != "" {
		fmt.Fprintf(Out, "  %s\n", d)
	}
}
