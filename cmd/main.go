package main

import (
	"context"
	"fmt"
	"os"
	"time"

	submit "github.com/velomail/go-submit"
)

func main() {
	c, err := submit.NewClient("manjaro-vm.fritz.box", submit.WithTimeout(time.Millisecond*500),
		submit.WithDebugLog())
	if err != nil {
		fmt.Printf("failed to create new client: %s\n", err)
		os.Exit(1)
	}

	ctx, cfn := context.WithCancel(context.Background())
	defer cfn()

	if err := c.DialWithContext(ctx); err != nil {
		fmt.Printf("failed to dial: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Negotiated session address: %s\n", c.ServerAddr())
	fmt.Printf("TLS policy: %s\n", c.TLSPolicy())

	if err := c.Close(); err != nil {
		fmt.Printf("failed to close: %s\n", err)
		os.Exit(1)
	}
}
