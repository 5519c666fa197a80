package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// EsploraBackend talks to an Esplora-compatible REST API: GET
// /address/{addr}/txs, GET /tx/{txid}, POST /tx, GET /blocks/tip/height.
type EsploraBackend struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewEsploraBackend constructs a backend against baseURL (no trailing
// slash), throttled to requestsPerSecond.
func NewEsploraBackend(name, baseURL string, requestsPerSecond float64) *EsploraBackend {
	return &EsploraBackend{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (b *EsploraBackend) Name() string { return b.name }

func (b *EsploraBackend) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := b.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chain: parse tip height: %w", err)
	}
	return height, nil
}

type esploraTx struct {
	Txid string `json:"txid"`
	Vin  []struct {
		Txid    string `json:"txid"`
		Vout    uint32 `json:"vout"`
		Prevout *struct {
			ScriptPubKey        string `json:"scriptpubkey"`
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
			Value               int64  `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKey        string `json:"scriptpubkey"`
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
}

func (t esploraTx) toTx() Tx {
	out := Tx{
		Txid: t.Txid,
		Status: TxStatus{
			Confirmed:   t.Status.Confirmed,
			BlockHeight: t.Status.BlockHeight,
			BlockTime:   t.Status.BlockTime,
		},
	}
	for _, vin := range t.Vin {
		v := Vin{Txid: vin.Txid, Vout: vin.Vout}
		if vin.Prevout != nil {
			v.Prevout = &Prevout{
				ScriptPubKey: vin.Prevout.ScriptPubKey,
				Address:      vin.Prevout.ScriptPubKeyAddress,
				Value:        vin.Prevout.Value,
			}
		}
		out.Vin = append(out.Vin, v)
	}
	for _, vout := range t.Vout {
		out.Vout = append(out.Vout, Vout{
			ScriptPubKey:        vout.ScriptPubKey,
			ScriptPubKeyAddress: vout.ScriptPubKeyAddress,
			Value:               vout.Value,
		})
	}
	return out
}

func (b *EsploraBackend) GetAddressTxs(ctx context.Context, address string) ([]Tx, error) {
	body, err := b.get(ctx, fmt.Sprintf("/address/%s/txs", address))
	if err != nil {
		return nil, err
	}
	var raw []esploraTx
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("chain: decode address txs: %w", err)
	}
	txs := make([]Tx, 0, len(raw))
	for _, t := range raw {
		txs = append(txs, t.toTx())
	}
	return txs, nil
}

func (b *EsploraBackend) GetTx(ctx context.Context, txid string) (*Tx, error) {
	body, err := b.get(ctx, "/tx/"+txid)
	if err != nil {
		return nil, err
	}
	var raw esploraTx
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("chain: decode tx: %w", err)
	}
	tx := raw.toTx()
	return &tx, nil
}

func (b *EsploraBackend) PostTx(ctx context.Context, rawHex string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tx", bytes.NewBufferString(rawHex))
	if err != nil {
		return "", fmt.Errorf("chain: build post tx request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", huberrWrap(b.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chain: read post tx response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chain: post tx failed (%d): %s", resp.StatusCode, string(body))
	}
	return strings.TrimSpace(string(body)), nil
}

func (b *EsploraBackend) get(ctx context.Context, path string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: build request %s: %w", path, err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, huberrWrap(b.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chain: read response %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, huberrWrap(b.name, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body)))
	}
	return body, nil
}
