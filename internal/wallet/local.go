package wallet

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

// rpcTransport talks to a JSON-RPC signer such as a local wallet daemon.
type rpcTransport struct {
	client *rpc.Client
}

func dialLocal(ctx context.Context, opts Options) (Transport, error) {
	url := strings.TrimSpace(opts.RPCURL)
	if url == "" {
		url = DefaultLocalRPCURL
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect local wallet rpc", err)
	}
	return &rpcTransport{client: client}, nil
}

func (t *rpcTransport) Request(ctx context.Context, result any, method string, params ...any) error {
	return t.client.CallContext(ctx, result, method, params...)
}

func (t *rpcTransport) Close() error {
	t.client.Close()
	return nil
}
