// Command gensecret prints random hex encoded key suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// HS256 signing key has to be at least as long as the hash output
const minKeyBytes = 32

func main() {
	if err := run(os.Stdout, rand.Reader, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, random io.Reader, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	size := fs.IntP("bytes", "n", minKeyBytes, "Key length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *size < minKeyBytes {
		return errors.New("key shorter than 32 bytes is too weak for HS256")
	}

	b := make([]byte, *size)
	if _, err := io.ReadFull(random, b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(out, hex.EncodeToString(b))
	return err
}
