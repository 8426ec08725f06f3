// Command verify prints the addresses of a mnemonic for a few indices and
// checks the built-in reference vectors.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Fantasim/hdwallet/internal/wallet"
)

// referenceMnemonic is the public BIP39 test mnemonic. Never fund it.
const referenceMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var referenceVectors = []struct {
	asset string
	index uint32
	want  string
}{
	{"ETH", 0, "0x9858effd232b4033e47d90003d41ec34ecaeda94"},
	{"USDT-ERC20", 0, "0x9858effd232b4033e47d90003d41ec34ecaeda94"},
	{"BTC", 0, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
	{"TRX", 0, "TUEZSdKsoDHQMeZwihtdoBiN46zxhGWYdH"},
}

func main() {
	mnemonicFile := flag.String("mnemonic-file", "", "Mnemonic to print (default: the reference mnemonic)")
	count := flag.Int("count", 3, "Indices to print per asset")
	flag.Parse()

	mnemonic := referenceMnemonic
	if *mnemonicFile != "" {
		m, err := wallet.ReadMnemonicFromFile(*mnemonicFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read mnemonic: %v\n", err)
			os.Exit(1)
		}
		mnemonic = m
	}

	d, err := wallet.NewDeriver(mnemonic, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mnemonic: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	for _, spec := range d.Registry().Assets() {
		fmt.Printf("=== %s (%s/N) ===\n", spec.Asset, spec.PathTemplate)
		for i := 0; i < *count; i++ {
			a, err := d.Derive(string(spec.Asset), uint32(i))
			if err != nil {
				fmt.Printf("  index %d: error: %v\n", i, err)
				continue
			}
			fmt.Printf("  index %d: %s\n", i, a.Address)
		}
		fmt.Println()
	}

	fmt.Println("=== Reference vectors ===")
	failed := 0
	for _, v := range referenceVectors {
		got, err := wallet.DeriveAddress(referenceMnemonic, v.asset, v.index)
		status := "ok"
		switch {
		case err != nil:
			status = "error: " + err.Error()
			failed++
		case got.Address != v.want:
			status = "MISMATCH, want " + v.want
			failed++
		}
		fmt.Printf("  %s[%d]: %s %s\n", v.asset, v.index, got.Address, status)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
