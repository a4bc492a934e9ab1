package rpc

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	callAttempts = 3
	callBackoff  = 500 * time.Millisecond
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

var (
	CommitmentProcessed = Commitment{Commitment: "processed"}
	CommitmentConfirmed = Commitment{Commitment: "confirmed"}
	CommitmentFinalized = Commitment{Commitment: "finalized"}
)

var ErrNoAccountInfo = errors.New("no account info")

// Client is the read-only part of the Solana JSON RPC API the quote
// tool needs.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (*solana.AccountInfo, error)
	GetMultipleAccounts(accounts []ed25519.PublicKey, commitment Commitment) ([]*solana.AccountInfo, error)
	GetMinimumBalanceForRentExemption(size uint64) (uint64, error)
	GetSlot(commitment Commitment) (uint64, error)
}

type client struct {
	log    *logrus.Entry
	client jsonrpc.RPCClient
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return &client{
		log:    logrus.StandardLogger().WithField("type", "rpc/client"),
		client: jsonrpc.NewClient(endpoint),
	}
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	var err error
	for attempt := 0; attempt < callAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(callBackoff << (attempt - 1))
		}

		err = c.client.CallFor(out, method, params...)
		if err == nil {
			return nil
		}
		if !c.retriable(method, err) {
			return err
		}
	}
	return err
}

func (c *client) retriable(method string, err error) bool {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return false
	}
	if rpcErr.Code == 429 {
		c.log.WithField("method", method).Warn("rate limited")
		return true
	}
	return rpcErr.Code >= 500 || rpcErr.Code == rpcNodeUnhealthyCode
}

type accountValue struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"`
}

func (v *accountValue) toAccountInfo(account ed25519.PublicKey) (*solana.AccountInfo, error) {
	owner, err := base58.Decode(v.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 encoded owner")
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 encoded data")
	}

	return &solana.AccountInfo{
		Key:      account,
		Owner:    owner,
		Lamports: v.Lamports,
		Data:     data,
	}, nil
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (*solana.AccountInfo, error) {
	type rpcResponse struct {
		Value *accountValue `json:"value"`
	}

	rpcConfig := struct {
		Commitment Commitment `json:"commitment"`
		Encoding   string     `json:"encoding"`
	}{
		Commitment: commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), rpcConfig); err != nil {
		return nil, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return nil, ErrNoAccountInfo
	}
	return resp.Value.toAccountInfo(account)
}

// GetMultipleAccounts returns one entry per requested account, nil for
// accounts that do not exist.
func (c *client) GetMultipleAccounts(accounts []ed25519.PublicKey, commitment Commitment) ([]*solana.AccountInfo, error) {
	type rpcResponse struct {
		Value []*accountValue `json:"value"`
	}

	encoded := make([]string, len(accounts))
	for i, account := range accounts {
		encoded[i] = base58.Encode(account)
	}

	rpcConfig := struct {
		Commitment Commitment `json:"commitment"`
		Encoding   string     `json:"encoding"`
	}{
		Commitment: commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(&resp, "getMultipleAccounts", encoded, rpcConfig); err != nil {
		return nil, errors.Wrap(err, "getMultipleAccounts() failed to send request")
	}
	if len(resp.Value) != len(accounts) {
		return nil, errors.Errorf("invalid number of accounts returned: %d", len(resp.Value))
	}

	infos := make([]*solana.AccountInfo, len(accounts))
	for i, value := range resp.Value {
		if value == nil {
			continue
		}

		info, err := value.toAccountInfo(accounts[i])
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	return infos, nil
}

func (c *client) GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed to send request")
	}
	return lamports, nil
}

func (c *client) GetSlot(commitment Commitment) (slot uint64, err error) {
	// note: we have to wrap the commitment in an []interface{} otherwise the
	//       solana RPC node complains. Technically this is a violation of the
	//       JSON RPC v2.0 spec.
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed to send request")
	}
	return slot, nil
}
