// Command kvs-client is the CLI front-end for kvs-server, implementing
// the get/set/rm subcommands and their exit-code contract.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kvsdb/kvs/internal/clientutil"
	"github.com/kvsdb/kvs/internal/kvserr"
)

// Version is the client's release identifier, reported by --version.
const Version = "0.5.0"

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kvs-client [--version] <get|set|rm> [args...] [--addr host:port]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if os.Args[1] == "--version" {
		fmt.Println(Version)
		return
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:4000", "server address")

	switch cmd {
	case "get":
		args := parseArgs(fs, os.Args[2:], 1)
		key := args[0]
		val, found, err := clientutil.Get(*addr, key)
		if err != nil {
			fail(err)
		}
		if !found {
			fmt.Println("Key not found")
			return
		}
		fmt.Println(val)

	case "set":
		args := parseArgs(fs, os.Args[2:], 2)
		key, val := args[0], args[1]
		if err := clientutil.Set(*addr, key, val); err != nil {
			fail(err)
		}

	case "rm":
		args := parseArgs(fs, os.Args[2:], 1)
		key := args[0]
		err := clientutil.Remove(*addr, key)
		if err != nil {
			if isKeyNotFound(err) {
				fmt.Println("Key not found")
				os.Exit(1)
			}
			fail(err)
		}

	default:
		usage()
		os.Exit(1)
	}
}

// parseArgs parses fs's flags out of args (which may appear before or
// after the positional arguments) and requires exactly want positional
// arguments remain.
func parseArgs(fs *flag.FlagSet, args []string, want int) []string {
	var rest []string
	for {
		if err := fs.Parse(args); err != nil {
			os.Exit(1)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		rest = append(rest, args[0])
		args = args[1:]
	}
	if len(rest) != want {
		usage()
		os.Exit(1)
	}
	return rest
}

func isKeyNotFound(err error) bool {
	serverErr, ok := err.(*kvserr.ServerError)
	return ok && serverErr.Msg == kvserr.ErrKeyNotFound.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
