package settings

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"
)

type (
	RateLimiter struct {
		Burst          int `json:"burst"`
		RequestsPerSec int `json:"req_per_sec"`
	}

	Graph struct {
		GatewayURLTemplate string `json:"gateway_url_template" validate:"required"`
		SubgraphID         string `json:"subgraph_id" validate:"required"`
		DefaultAPIKey      string `json:"default_api_key"`
		OperatorsPerPage   int    `json:"operators_per_page"`
		DelegatorsPerPage  int    `json:"delegators_per_page"`
		MinSearchLength    int    `json:"min_search_length"`
		NameSearchDepth    int    `json:"name_search_depth"`
	}

	Explorer struct {
		URL         string       `json:"url" validate:"required"`
		APIKey      string       `json:"api_key"`
		Timeout     int          `json:"timeout"`
		RateLimiter *RateLimiter `json:"rate_limit,omitempty"`
	}

	Chain struct {
		RPCURL            string `json:"rpc_url" validate:"required"`
		ChainID           int64  `json:"chain_id" validate:"required"`
		TokenAddress      string `json:"token_address" validate:"required"`
		ConfigAddress     string `json:"config_address" validate:"required"`
		GovernanceSymbol  string `json:"governance_symbol"`
		NativeSymbol      string `json:"native_symbol"`
		IPFSGatewayFormat string `json:"ipfs_gateway_format"`
		WalletPrivateKey  string `json:"-"`
	}

	Redis struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Db       int    `json:"db"`
		Password string `json:"password"`
		PoolSize int    `json:"pool_size"`
	}

	Streams struct {
		User                 string `json:"user"`
		Password             string `json:"password"`
		Host                 string `json:"host"`
		Port                 int    `json:"port"`
		CoordinationExchange string `json:"coordination_exchange"`
		PriceFeedURL         string `json:"price_feed_url"`
		PriceStreamID        string `json:"price_stream_id"`
	}

	Race struct {
		StartDateISO         string `json:"start_date_iso"`
		SnapshotIntervalDays int    `json:"snapshot_interval_days"`
		CheckpointTopN       int    `json:"checkpoint_top_n"`
		CurrentTopN          int    `json:"current_top_n"`
		DisplayCount         int    `json:"display_count"`
		MetadataChunkSize    int    `json:"metadata_chunk_size"`
		HistoryPageSize      int    `json:"history_page_size"`
		NoiseFloorWei        string `json:"noise_floor_wei"`
		ScaleStepDisplay     int64  `json:"scale_step_display"`
	}

	HTTPClient struct {
		MaxIdleConns        int `json:"max_idle_conns"`
		MaxConnsPerHost     int `json:"max_conns_per_host"`
		MaxIdleConnsPerHost int `json:"max_idle_conns_per_host"`
		IdleConnTimeout     int `json:"idle_conn_timeout"`
		ConnectionTimeout   int `json:"connection_timeout"`
	}

	Healthcheck struct {
		Port     int    `json:"port"`
		Endpoint string `json:"endpoint"`
	}
)

type SettingsObj struct {
	InstanceId             string       `json:"instance_id" validate:"required"`
	DetailPollIntervalSecs int          `json:"detail_poll_interval_secs"`
	HttpClient             *HTTPClient  `json:"http_client" validate:"required,dive"`
	Graph                  *Graph       `json:"graph" validate:"required,dive"`
	Explorer               *Explorer    `json:"explorer" validate:"required,dive"`
	Chain                  *Chain       `json:"chain" validate:"required,dive"`
	Redis                  *Redis       `json:"redis" validate:"required,dive"`
	Streams                *Streams     `json:"streams" validate:"required,dive"`
	Race                   *Race        `json:"race" validate:"required,dive"`
	Healthcheck            *Healthcheck `json:"healthcheck" validate:"required"`
}

// ParseSettings parses the settings.json file and returns a SettingsObj
func ParseSettings() *SettingsObj {
	log.Debug("parsing settings")

	_ = godotenv.Load()

	v := validator.New()

	dir := strings.TrimSuffix(os.Getenv("CONFIG_PATH"), "/")
	settingsFilePath := dir + "/settings.json"

	settingsObj := new(SettingsObj)

	log.Info("reading settings:", settingsFilePath)

	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		log.Error("cannot read the file:", err)
		panic(err)
	}

	err = json.Unmarshal(data, settingsObj)
	if err != nil {
		log.Error("cannot unmarshal the settings json ", err)
		panic(err)
	}

	err = v.Struct(settingsObj)
	if err != nil {
		log.WithError(err).Fatal("invalid settings object")
	}

	SetDefaults(settingsObj)

	err = gi.Inject(settingsObj)
	if err != nil {
		log.Fatal("cannot inject the settings object", err)
	}

	return settingsObj
}

// SetDefaults sets the default values for the settings object
// add default values in this function if required
func SetDefaults(settingsObj *SettingsObj) {
	if settingsObj.DetailPollIntervalSecs == 0 {
		settingsObj.DetailPollIntervalSecs = 30
	}

	if settingsObj.Graph.OperatorsPerPage == 0 {
		settingsObj.Graph.OperatorsPerPage = 20
	}

	if settingsObj.Graph.DelegatorsPerPage == 0 {
		settingsObj.Graph.DelegatorsPerPage = 100
	}

	if settingsObj.Graph.MinSearchLength == 0 {
		settingsObj.Graph.MinSearchLength = 3
	}

	// name search filters a ranked superset client side, this bounds its depth
	if settingsObj.Graph.NameSearchDepth == 0 {
		settingsObj.Graph.NameSearchDepth = 1000
	}

	if settingsObj.Chain.GovernanceSymbol == "" {
		settingsObj.Chain.GovernanceSymbol = "DATA"
	}

	if settingsObj.Chain.NativeSymbol == "" {
		settingsObj.Chain.NativeSymbol = "POL"
	}

	if settingsObj.Chain.IPFSGatewayFormat == "" {
		settingsObj.Chain.IPFSGatewayFormat = "https://ipfs.io/ipfs/%s"
	}

	if settingsObj.Race.StartDateISO == "" {
		settingsObj.Race.StartDateISO = "2024-03-18T00:00:00Z"
	}

	if settingsObj.Race.SnapshotIntervalDays == 0 {
		settingsObj.Race.SnapshotIntervalDays = 15
	}

	if settingsObj.Race.CheckpointTopN == 0 {
		settingsObj.Race.CheckpointTopN = 40
	}

	if settingsObj.Race.CurrentTopN == 0 {
		settingsObj.Race.CurrentTopN = 50
	}

	if settingsObj.Race.DisplayCount == 0 {
		settingsObj.Race.DisplayCount = 30
	}

	if settingsObj.Race.MetadataChunkSize == 0 {
		settingsObj.Race.MetadataChunkSize = 100
	}

	if settingsObj.Race.HistoryPageSize == 0 {
		settingsObj.Race.HistoryPageSize = 1000
	}

	if settingsObj.Race.NoiseFloorWei == "" {
		settingsObj.Race.NoiseFloorWei = "1000"
	}

	if settingsObj.Race.ScaleStepDisplay == 0 {
		settingsObj.Race.ScaleStepDisplay = 500000
	}

	// for local testing
	if val, err := strconv.ParseBool(os.Getenv("LOCAL_TESTING")); err == nil && val {
		settingsObj.Redis.Host = "localhost"
		settingsObj.Streams.Host = "localhost"
	}

	graphAPIKey := os.Getenv("GRAPH_API_KEY")
	if graphAPIKey != "" {
		settingsObj.Graph.DefaultAPIKey = graphAPIKey
	}

	explorerAPIKey := os.Getenv("EXPLORER_API_KEY")
	if explorerAPIKey != "" {
		settingsObj.Explorer.APIKey = explorerAPIKey
	}

	// the signing key never lives in settings.json
	walletKey := os.Getenv("WALLET_PRIVATE_KEY")
	if walletKey != "" {
		settingsObj.Chain.WalletPrivateKey = walletKey
	}

	if settingsObj.Healthcheck.Endpoint == "" {
		settingsObj.Healthcheck.Endpoint = "/health"
	}

	if settingsObj.Healthcheck.Port == 0 {
		settingsObj.Healthcheck.Port = 9000
	}
}
