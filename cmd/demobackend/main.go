package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xela07ax/riskwatch/internal/cli"
)

func main() {
	if err := cli.NewDemoBackendRoot().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "demobackend:", err)
		os.Exit(1)
	}
}
