package public

import (
	"context"
	"net/http"

	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/web"
)

// StoreFile keeps the content and records it on the chain.
func (h Handlers) StoreFile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nf newFile
	if err := web.Decode(r, &nf); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, file, err := h.Core.StoreFile(ctx, nf.Name, nf.Data)
	if err != nil {
		return err
	}

	resp := storedFile{
		BlockHash: block.Hash,
		Name:      file.Name,
		Hash:      file.Hash,
		Size:      file.Size,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// RetrieveFile writes the raw content stored under the hash.
func (h Handlers) RetrieveFile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data, err := h.Core.RetrieveFile(web.Param(r, "hash"))
	if err != nil {
		return trusted(err)
	}

	web.SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(data)
	return err
}

// StoreEncrypted seals the data and records it on the chain. The key in the
// response is the only way to read the data back.
func (h Handlers) StoreEncrypted(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ne newEncrypted
	if err := web.Decode(r, &ne); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, key, err := h.Core.StoreEncrypted(ctx, ne.Type, ne.Data)
	if err != nil {
		return err
	}

	resp := storedEncrypted{
		BlockHash: block.Hash,
		Key:       key,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Decrypt returns every record of the chain the key opens.
func (h Handlers) Decrypt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req decryptRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	found := h.Core.Decrypt(req.Key)

	resp := make([]decrypted, len(found))
	for i, d := range found {
		resp[i] = decrypted{
			BlockHash: d.BlockHash,
			Index:     d.Index,
			Type:      d.Record.Type,
			Data:      d.Plaintext,
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
