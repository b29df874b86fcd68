package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/galxe/blobs3/pkg/common"
	"github.com/galxe/blobs3/pkg/common/crypto/signer"
)

const (
	HeaderAddress   = "X-Blobs3-Address"
	HeaderTimestamp = "X-Blobs3-Timestamp"
	HeaderSignature = "X-Blobs3-Signature"
)

var errUnauthenticated = errors.New("unauthenticated")

// authenticate returns the checksummed address that signed r, or "" when r
// carries no credentials at all
func (h *Handler) authenticate(r *http.Request) (string, error) {
	addr := r.Header.Get(HeaderAddress)
	ts := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if addr == "" && ts == "" && sig == "" {
		return "", nil
	}
	if addr == "" || ts == "" || sig == "" {
		return "", fmt.Errorf("%w: incomplete credentials", errUnauthenticated)
	}

	address, err := common.ParseAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errUnauthenticated, err)
	}

	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid timestamp", errUnauthenticated)
	}
	skew := h.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > h.maxSkew {
		return "", fmt.Errorf("%w: timestamp outside allowed skew", errUnauthenticated)
	}

	if !strings.HasPrefix(sig, "0x") && !strings.HasPrefix(sig, "0X") {
		sig = "0x" + sig
	}
	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return "", fmt.Errorf("%w: invalid signature encoding", errUnauthenticated)
	}
	if err := signer.VerifySignature(address, signer.RequestMessage(r.Method, r.URL.Path, timestamp), sigBytes); err != nil {
		return "", fmt.Errorf("%w: %w", errUnauthenticated, err)
	}
	return address.Hex(), nil
}
