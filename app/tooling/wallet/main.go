// This program creates a password protected keystore account which the
// admin tool can turn into a node key.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/console/prompt"
)

func main() {
	dir := "zblock/keystore"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	password, err := getPassPhrase("Please enter a password to encrypt the wallet: ")
	if err != nil {
		log.Fatalln(err)
	}

	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	acc, err := ks.NewAccount(password)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Printf("New account created: %s\n", acc.Address.Hex())
	fmt.Printf("Keystore file: %s\n", acc.URL.Path)
}

func getPassPhrase(text string) (string, error) {
	password, err := prompt.Stdin.PromptPassword(text)
	if err != nil {
		return "", err
	}

	confirm, err := prompt.Stdin.PromptPassword("Repeat password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}

	return password, nil
}
