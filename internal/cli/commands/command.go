package commands

import (
	"SHLink/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrUsage возвращается командой при неверных аргументах: диспетчер печатает Usage.
var ErrUsage = errors.New("usage")

// Command — подкоманда CLI.
type Command interface {
	// Name — имя команды, например "create".
	Name() string
	// Description — строка для справки.
	Description() string
	// Usage — точная строка использования, например "show <id>".
	Usage() string
	// Run выполняет команду; args без имени команды.
	Run(ctx context.Context, cfg *config.Config, args []string) error
}

// Разделы справки.
const (
	GroupManage    = "Управление ссылками (API издателя)"
	GroupRecipient = "Получатель (протокол SHL)"
)

// grouped — необязательный интерфейс команды для раздела справки.
// Команды без него относятся к GroupManage.
type grouped interface {
	Group() string
}

var registry = map[string]Command{}

// Out — общий writer для вывода CLI. По умолчанию os.Stdout, в тестах переназначается.
var Out io.Writer = os.Stdout

// RegisterCmd добавляет команду в реестр; вызывается из init() файла команды.
func RegisterCmd(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get возвращает команду по имени.
func Get(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// List возвращает команды, отсортированные по имени.
func List() []Command {
	list := make([]Command, 0, len(registry))
	for _, c := range registry {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

func groupOf(c Command) string {
	if g, ok := c.(grouped); ok {
		return g.Group()
	}
	return GroupManage
}

// FormatGlobalUsage собирает общую справку: команды по разделам и коды выхода.
func FormatGlobalUsage() string {
	lines := []string{
		"SHL CLI: выпуск и получение SMART Health Links",
		"",
		"Usage:",
		"  shlcli [--base-url <host:port>] [--https] <command> [args]",
		"  shlcli help <command>",
	}
	for _, group := range []string{GroupManage, GroupRecipient} {
		var section []string
		for _, c := range List() {
			if groupOf(c) == group {
				section = append(section, fmt.Sprintf("  %-28s %s", c.Usage(), c.Description()))
			}
		}
		if len(section) == 0 {
			continue
		}
		lines = append(lines, "", group+":")
		lines = append(lines, section...)
	}
	lines = append(lines,
		"",
		"Exit codes:",
		fmt.Sprintf("  %d ok, %d error, %d usage, %d passcode required or rejected, %d link or token gone",
			ExitOK, ExitError, ExitUsage, ExitPasscode, ExitGone),
	)
	return strings.Join(lines, "\n") + "\n"
}
