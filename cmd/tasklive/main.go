// Command tasklive はタスク管理APIとライブ配信サーバーを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/tasklive/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tasklive: %v\n", err)
		os.Exit(1)
	}
}
