package wallet

import "strings"

// NativeCurrency describes a chain's gas token.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkConfig is the parameter object for wallet_addEthereumChain.
type NetworkConfig struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// HenesysNetwork is the game chain the forum's wallet login targets.
func HenesysNetwork() NetworkConfig {
	return NetworkConfig{
		ChainID:   "0x10b3e", // 68414
		ChainName: "Henesys Network",
		NativeCurrency: NativeCurrency{
			Name:     "NXPC",
			Symbol:   "NXPC",
			Decimals: 18,
		},
		RPCURLs:           []string{"https://henesys-rpc.msu.io"},
		BlockExplorerURLs: []string{"https://msu-explorer.xangle.io"},
	}
}

var networkNames = map[string]string{
	"0x1":      "Ethereum Mainnet",
	"0x5":      "Goerli Testnet",
	"0xaa36a7": "Sepolia Testnet",
	"0x89":     "Polygon Mainnet",
	"0x13881":  "Mumbai Testnet",
	"0xa4b1":   "Arbitrum One",
	"0x2105":   "Base Mainnet",
	"0x14a33":  "Base Goerli",
	"0xa86a":   "AVAX Mainnet",
	"0x64":     "Gnosis Chain",
	"0xa":      "Optimism",
	"0x38":     "Binance Smart Chain",
	"0x61":     "BSC Testnet",
	"0x10b3e":  "Henesys Network",
}

// NetworkName resolves a chain ID to a display name.
func NetworkName(chainID string) string {
	if chainID == "" {
		return "network unavailable"
	}
	if name, ok := networkNames[strings.ToLower(chainID)]; ok {
		return name
	}
	return "unknown network (" + chainID + ")"
}
