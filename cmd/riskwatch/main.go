package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xela07ax/riskwatch/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "riskwatch:", err)
		os.Exit(1)
	}
}
