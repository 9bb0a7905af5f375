package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"bazaar/crypto"
)

const defaultRPC = "http://127.0.0.1:8645"

func main() {
	rpcURL := flag.String("rpc", defaultRPC, "Address of the bazaard JSON-RPC endpoint")
	token := flag.String("token", os.Getenv("BAZAAR_RPC_TOKEN"), "Bearer token for mutating methods")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "keygen":
		err = runKeygen()
	case "addr":
		err = runAddr(args[1:])
	case "call":
		err = runCall(*rpcURL, *token, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bazaar-cli [-rpc URL] [-token TOKEN] <command>

commands:
  keygen                     generate a marketplace identity
  addr <privkey-hex>         derive the address for a private key
  call <method> [json]       invoke a JSON-RPC method with one params object

examples:
  bazaar-cli call market_getOrder '{"orderId":1}'
  bazaar-cli call catalog_addProduct '{"seller":"bzr1...","price":"100","stock":5}'`)
}

func runKeygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("address:  %s\n", key.PubKey().Address())
	fmt.Printf("privkey:  %s\n", hex.EncodeToString(key.Bytes()))
	return nil
}

func runAddr(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("addr requires exactly one private key argument")
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("invalid private key hex: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address())
	return nil
}

func runCall(rpcURL, token string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("call requires a method name")
	}
	method := args[0]
	params := []json.RawMessage{}
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params must be a JSON object")
		}
		params = append(params, json.RawMessage(args[1]))
	}
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, rpcURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
