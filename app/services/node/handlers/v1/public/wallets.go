package public

import (
	"context"
	"net/http"

	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/web"
)

// ListWallets returns the wallets known to the node with their balances.
func (h Handlers) ListWallets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	wallets, err := h.Wallets.List()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, wallets, http.StatusOK)
}

// CreateWallet registers a wallet for a new public key.
func (h Handlers) CreateWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nw newWallet
	if err := web.Decode(r, &nw); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	wal, err := h.Wallets.Create(nw.PublicKey, nw.Label)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, wal, http.StatusCreated)
}

// ImportWallet registers a wallet for a key generated elsewhere.
func (h Handlers) ImportWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nw newWallet
	if err := web.Decode(r, &nw); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	wal, err := h.Wallets.Import(nw.PublicKey, nw.Label)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, wal, http.StatusCreated)
}

// QueryWallet returns the wallet with the address.
func (h Handlers) QueryWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	wal, err := h.Wallets.Get(web.Param(r, "address"))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, wal, http.StatusOK)
}

// RemoveWallet forgets the wallet with the address.
func (h Handlers) RemoveWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Wallets.Remove(web.Param(r, "address")); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
