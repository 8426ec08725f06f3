package models

// Asset is a supported asset symbol (native coin or token).
type Asset string

const (
	AssetETH       Asset = "ETH"
	AssetUSDTERC20 Asset = "USDT-ERC20"
	AssetUSDCERC20 Asset = "USDC-ERC20"
	AssetBTC       Asset = "BTC"
	AssetTRX       Asset = "TRX"
	AssetUSDTTRC20 Asset = "USDT-TRC20"
)

// Family groups assets that share one derivation path and address.
type Family string

const (
	FamilyEthereum Family = "ethereum"
	FamilyBitcoin  Family = "bitcoin"
	FamilyTron     Family = "tron"
)

// AllFamilies is the ordered list of supported asset families.
var AllFamilies = []Family{FamilyEthereum, FamilyBitcoin, FamilyTron}

// DerivedAddress is the result of one derivation call.
type DerivedAddress struct {
	Asset          Asset  `json:"asset"`
	Family         Family `json:"family"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivationPath"`
	AddressIndex   uint32 `json:"addressIndex"`
}

// StoredAddress is a derived address row owned by a user.
type StoredAddress struct {
	UserID string `json:"userId"`
	DerivedAddress
	CreatedAt string `json:"createdAt"`
}

// AddressExport represents the JSON export format for a user's addresses.
type AddressExport struct {
	UserID      string              `json:"user_id"`
	GeneratedAt string              `json:"generated_at"`
	Count       int                 `json:"count"`
	Addresses   []AddressExportItem `json:"addresses"`
}

// AddressExportItem is a single address entry in the export file.
type AddressExportItem struct {
	Asset          Asset  `json:"asset"`
	Index          uint32 `json:"index"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivation_path"`
}

// AddressMismatch describes a stored row that no longer matches its re-derivation.
type AddressMismatch struct {
	Asset        Asset  `json:"asset"`
	AddressIndex uint32 `json:"addressIndex"`
	Stored       string `json:"stored"`
	Derived      string `json:"derived,omitempty"`
	Reason       string `json:"reason"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains pagination and execution metadata.
type APIMeta struct {
	Page          int   `json:"page,omitempty"`
	PageSize      int   `json:"pageSize,omitempty"`
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
