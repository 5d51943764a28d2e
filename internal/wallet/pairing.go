package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

const disconnectTimeout = 5 * time.Second

// pairingTransport relays requests to a remote wallet through a pairing relay.
// The user approves the session on their device after opening the printed URI.
type pairingTransport struct {
	client *rpc.Client
	topic  string
}

type pairingProposal struct {
	URI   string `json:"uri"`
	Topic string `json:"topic"`
}

type relayedRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func dialPairing(ctx context.Context, opts Options) (Transport, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, clierr.New(clierr.CodeUsage, "walletconnect wallet requires walletconnect.project_id")
	}
	url := strings.TrimSpace(opts.RelayURL)
	if url == "" {
		url = DefaultRelayURL
	}
	client, err := rpc.DialWebsocket(ctx, url, "")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect pairing relay", err)
	}

	var proposal pairingProposal
	if err := client.CallContext(ctx, &proposal, "wc_pair", map[string]any{
		"projectId": opts.ProjectID,
		"methods":   []string{"eth_accounts", "eth_chainId", "personal_sign"},
	}); err != nil {
		client.Close()
		return nil, clierr.Wrap(clierr.CodeUnavailable, "create pairing", err)
	}
	fmt.Fprintf(opts.Prompt, "Open this URI in your wallet to connect:\n%s\n", proposal.URI)
	opts.Logger.Info("waiting for wallet to approve pairing", "topic", proposal.Topic)

	var approved bool
	if err := client.CallContext(ctx, &approved, "wc_awaitSession", proposal.Topic); err != nil {
		client.Close()
		return nil, clierr.Wrap(clierr.CodeUnavailable, "await pairing approval", err)
	}
	if !approved {
		client.Close()
		return nil, clierr.New(clierr.CodeUnavailable, "wallet rejected the pairing request")
	}
	return &pairingTransport{client: client, topic: proposal.Topic}, nil
}

func (t *pairingTransport) Request(ctx context.Context, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	var raw json.RawMessage
	if err := t.client.CallContext(ctx, &raw, "wc_request", t.topic, relayedRequest{Method: method, Params: params}); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(raw, result)
}

func (t *pairingTransport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	err := t.client.CallContext(ctx, nil, "wc_disconnect", t.topic)
	t.client.Close()
	return err
}
