package app

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Options はコマンドライン引数の解析結果。
// 空文字のフィールドは環境変数の値をそのまま使う。
type Options struct {
	Command  Command
	Port     string
	LogLevel string
	Help     bool
}

// ParseArgs はコマンドライン引数からサブコマンドとフラグを解析する。
// サブコマンドが空の場合はCommandServeとする。不明なサブコマンドやフラグはエラー。
func ParseArgs(args []string, errOut io.Writer) (Options, error) {
	var opts Options

	flagSet := pflag.NewFlagSet("tasklive", pflag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.StringVar(&opts.Port, "port", "", "HTTP listen port (overrides SERVER_PORT)")
	flagSet.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flagSet.Usage = func() {
		fmt.Fprintf(errOut, "Usage: tasklive [serve|migrate|healthcheck] [flags]\n\n")
		flagSet.PrintDefaults()
	}

	// -h/--helpはpflagがUsageを出力した上でErrHelpを返す
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			opts.Help = true
			return opts, nil
		}
		return opts, err
	}

	rest := flagSet.Args()
	if len(rest) > 1 {
		return opts, fmt.Errorf("unexpected arguments: %v", rest[1:])
	}

	opts.Command = CommandServe
	if len(rest) == 1 {
		switch Command(rest[0]) {
		case CommandServe, CommandMigrate, CommandHealthcheck:
			opts.Command = Command(rest[0])
		default:
			return opts, fmt.Errorf("unknown command %q", rest[0])
		}
	}

	return opts, nil
}
