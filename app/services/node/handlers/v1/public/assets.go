package public

import (
	"context"
	"net/http"

	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
	"github.com/ardanlabs/peerledger/foundation/web"
)

// ListAssets returns every asset ordered by creation time.
func (h Handlers) ListAssets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Assets.GetAllAssets(), http.StatusOK)
}

// CreateAsset issues a new asset with its full supply held by the creator.
func (h Handlers) CreateAsset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var na assets.NewAsset
	if err := web.Decode(r, &na); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	asset, err := h.Assets.CreateAsset(na)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, asset, http.StatusCreated)
}

// QueryAsset returns the asset with the id.
func (h Handlers) QueryAsset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	asset, err := h.Assets.GetAsset(web.Param(r, "id"))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, asset, http.StatusOK)
}

// AssetHolders returns the balance of every holder of the asset.
func (h Handlers) AssetHolders(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	holders, err := h.Assets.Holders(web.Param(r, "id"))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, holders, http.StatusOK)
}

// AssetBalances returns the balance of every asset the address holds.
func (h Handlers) AssetBalances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Assets.BalancesOf(web.Param(r, "address")), http.StatusOK)
}

// Mint credits new units of the asset.
func (h Handlers) Mint(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var m mint
	if err := web.Decode(r, &m); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, err := h.Assets.Mint(web.Param(r, "id"), m.To, m.Amount)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tx, http.StatusCreated)
}

// Transfer moves units of the asset between two holders.
func (h Handlers) Transfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var t transfer
	if err := web.Decode(r, &t); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, err := h.Assets.Transfer(web.Param(r, "id"), t.From, t.To, t.Amount)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tx, http.StatusCreated)
}

// Burn destroys units of the asset and reduces its supply.
func (h Handlers) Burn(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var b burn
	if err := web.Decode(r, &b); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, err := h.Assets.Burn(web.Param(r, "id"), b.From, b.Amount)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tx, http.StatusCreated)
}

// RecomputeAssets rebuilds the asset balances from the chain.
func (h Handlers) RecomputeAssets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Assets.RecomputeAllBalances()

	resp := struct {
		Status string `json:"status"`
		Assets int    `json:"assets"`
	}{
		Status: "balances recomputed",
		Assets: len(h.Assets.GetAllAssets()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
