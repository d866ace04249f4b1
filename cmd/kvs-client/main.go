// Command kvs-client is a minimal CLI for exercising a running kvs
// server: kvs-client -addr 127.0.0.1:4000 get|set|rm ...
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kvsdb/kvs/internal/kvclient"
	"github.com/kvsdb/kvs/internal/kvserr"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "kvs server address")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	c, err := kvclient.ConnectWithRetry(*addr, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer c.Close()

	switch args[0] {
	case "get":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		value, ok, err := c.Get(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("Key not found")
			return
		}
		fmt.Println(value)
	case "set":
		if len(args) != 3 {
			usage()
			os.Exit(2)
		}
		if err := c.Set(args[1], args[2]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "rm":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		if err := c.Remove(args[1]); err != nil {
			if kvserr.Is(err, kvserr.KeyNotFound) {
				fmt.Fprintln(os.Stderr, "Key not found")
				os.Exit(1)
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kvs-client [-addr host:port] get <key> | set <key> <value> | rm <key>")
}
