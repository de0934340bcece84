// vaultctl is a small operations client for a running vaultd instance.
//
// Usage:
//
//	vaultctl -addr http://localhost:8080 totals
//	vaultctl account 0xAA...
//	vaultctl quote -asset 0xCC... -amount 1000000000000000000
//	vaultctl mint -account 0xAA... -amount 1000000000000000000
//	vaultctl deposit -account 0xAA... -amount 1000000000000000000
//	vaultctl withdraw -account 0xAA... -asset 0xCC... -amount 5
//	vaultctl set-caps -actor 0x01... -global 2000000000000
//	vaultctl set-feed -actor 0x01... -asset 0xCC... -price 100000000 -decimals 8
//	vaultctl pause -actor 0x01...
//	vaultctl unpause -actor 0x01...
//	vaultctl observations -limit 20
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "vaultd API address")
	account := flag.String("account", "", "account address (hex)")
	actor := flag.String("actor", "", "administrator address (hex)")
	asset := flag.String("asset", "", "asset address (hex), empty = native")
	amount := flag.String("amount", "", "amount in native units (decimal)")
	globalCap := flag.String("global", "", "new global cap (USD6 decimal)")
	withdrawCap := flag.String("withdraw", "", "new per-withdrawal cap (USD6 decimal)")
	price := flag.String("price", "", "feed price (decimal)")
	decimals := flag.Uint("decimals", 8, "feed price decimals")
	tokenDecimals := flag.Uint("token-decimals", 0, "token unit decimals to register")
	limit := flag.Int("limit", 50, "observation count")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: vaultctl [flags] <totals|account|quote|mint|deposit|withdraw|set-caps|set-feed|pause|unpause|observations>")
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "totals":
		err = get(*addr + "/api/v1/vault/totals")
	case "account":
		target := *account
		if flag.NArg() > 1 {
			target = flag.Arg(1)
		}
		err = get(*addr + "/api/v1/vault/accounts/" + url.PathEscape(target))
	case "quote":
		err = get(fmt.Sprintf("%s/api/v1/vault/quote?asset=%s&amount=%s",
			*addr, url.QueryEscape(*asset), url.QueryEscape(*amount)))
	case "mint":
		err = post(*addr+"/api/v1/bank/mint", map[string]string{
			"account": *account, "asset": *asset, "amount": *amount,
		})
	case "deposit":
		err = post(*addr+"/api/v1/vault/deposit", map[string]string{
			"account": *account, "asset": *asset, "amount": *amount,
		})
	case "withdraw":
		err = post(*addr+"/api/v1/vault/withdraw", map[string]string{
			"account": *account, "asset": *asset, "amount": *amount,
		})
	case "set-caps":
		err = post(*addr+"/api/v1/admin/caps", map[string]string{
			"actor": *actor, "globalCap": *globalCap, "withdrawCap": *withdrawCap,
		})
	case "set-feed":
		err = post(*addr+"/api/v1/admin/feeds", map[string]interface{}{
			"actor": *actor, "asset": *asset, "price": *price,
			"decimals": *decimals, "tokenDecimals": *tokenDecimals,
		})
	case "pause":
		err = post(*addr+"/api/v1/admin/pause", map[string]string{"actor": *actor})
	case "unpause":
		err = post(*addr+"/api/v1/admin/unpause", map[string]string{"actor": *actor})
	case "observations":
		err = get(fmt.Sprintf("%s/api/v1/vault/observations?limit=%d", *addr, *limit))
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultctl: %v\n", err)
		os.Exit(1)
	}
}

func get(u string) error {
	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	return dump(resp)
}

func post(u string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(u, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return dump(resp)
}

func dump(resp *http.Response) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Re-indent JSON when possible for readable terminal output.
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Println(string(data))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
