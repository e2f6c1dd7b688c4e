package abiFetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Sourcify repository endpoint serving verified
// contract metadata.
const DefaultBaseURL = "https://repo.sourcify.dev/contracts/full_match"

// AbiFetcher looks up a contract's ABI from the Sourcify public registry.
// It runs off the hot path: the batch engine never calls out; callers fetch
// missing ABIs up front and drop the JSON into the ABI folder.
type AbiFetcher struct {
	baseURL string
	chainID uint64
	client  *http.Client
	logger  *zap.Logger
}

type FetcherConfig struct {
	BaseURL string
	ChainID uint64
	Timeout time.Duration
}

func NewAbiFetcher(cfg *FetcherConfig, logger *zap.Logger) *AbiFetcher {
	baseURL := DefaultBaseURL
	chainID := uint64(1)
	timeout := 30 * time.Second
	if cfg != nil {
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
		if cfg.ChainID != 0 {
			chainID = cfg.ChainID
		}
		if cfg.Timeout != 0 {
			timeout = cfg.Timeout
		}
	}
	return &AbiFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch retrieves the ABI JSON array for the given contract address.
func (f *AbiFetcher) Fetch(ctx context.Context, address common.Address) ([]byte, error) {
	url := fmt.Sprintf("%s/%d/%s/metadata.json", f.baseURL, f.chainID, address.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build ABI lookup request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "ABI lookup for %s failed", address.Hex())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Errorf("no verified ABI for %s on chain %d", address.Hex(), f.chainID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ABI lookup for %s returned status %d", address.Hex(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ABI lookup response")
	}

	var metadata struct {
		Output struct {
			Abi json.RawMessage `json:"abi"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, errors.Wrapf(err, "malformed metadata for %s", address.Hex())
	}
	if metadata.Output.Abi == nil {
		return nil, errors.Errorf("metadata for %s carries no ABI", address.Hex())
	}

	f.logger.Sugar().Infow("Fetched ABI from registry", "address", address.Hex(), "chainId", f.chainID)
	return metadata.Output.Abi, nil
}

// FetchToFolder fetches the ABI and writes it as <address>.json under
// folder, the file naming the ABI reader derives addresses from.
func (f *AbiFetcher) FetchToFolder(ctx context.Context, address common.Address, folder string) (string, error) {
	data, err := f.Fetch(ctx, address)
	if err != nil {
		return "", err
	}
	path := filepath.Join(folder, strings.ToLower(address.Hex())+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}
